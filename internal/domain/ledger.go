package domain

// LedgerRecord is one row of the purchases ledger ("Relatório de Entradas").
// Fields are loosely typed at ingestion: coercion failures degrade a field to
// its zero value instead of rejecting the row. A record whose document number
// failed to parse keeps DocNumber == 0 and simply never matches.
type LedgerRecord struct {
	DocNumber   int     `json:"doc_number"`
	CFOP        string  `json:"cfop"`
	ProductCode string  `json:"product_code"`
	Description string  `json:"description"`
	BookedValue float64 `json:"booked_value"`
}
