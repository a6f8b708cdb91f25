package domain

import "time"

// RuleLabel identifies which branch of the DIFAL engine fired for a row.
type RuleLabel string

const (
	LabelWithheldAtSource  RuleLabel = "withheld at source"
	LabelIntraJurisdiction RuleLabel = "intra-jurisdiction"
	LabelNotTaxable        RuleLabel = "not taxable"
	LabelSimplified        RuleLabel = "simplified differential"
	LabelSingleBase        RuleLabel = "single base"
	LabelDoubleBase        RuleLabel = "double base"
	LabelComputationError  RuleLabel = "computation error"
)

// MatchedRecord joins exactly one LineItem with zero-or-one LedgerRecord.
// Ledger is nil when no ledger table was supplied for the run. When several
// ledger rows share the join key the match fans out: each fanned-out record
// carries the total Multiplicity and its 1-based MatchIndex.
type MatchedRecord struct {
	Item         LineItem      `json:"item"`
	Ledger       *LedgerRecord `json:"ledger,omitempty"`
	Multiplicity int           `json:"multiplicity"`
	MatchIndex   int           `json:"match_index"`
}

// ApplicableCFOP is the movement code used for eligibility: the ledger's
// booked CFOP when a ledger row matched, the item's own declaration otherwise.
func (m *MatchedRecord) ApplicableCFOP() string {
	if m.Ledger != nil && m.Ledger.CFOP != "" {
		return m.Ledger.CFOP
	}
	return m.Item.CFOP
}

// TaxResult is the engine's verdict for one matched record. Computed once,
// never mutated.
type TaxResult struct {
	Amount float64   `json:"amount"`
	Label  RuleLabel `json:"label"`
}

// AuditRun summarises one completed reconciliation pass.
type AuditRun struct {
	ID             string    `json:"id"`
	TargetCNPJ     string    `json:"target_cnpj"`
	DestinationUF  string    `json:"destination_uf"`
	Regime         TaxRegime `json:"regime"`
	RateSource     string    `json:"rate_source"`
	MatchMode      string    `json:"match_mode"`
	DocumentCount  int       `json:"document_count"`
	LineItemCount  int       `json:"line_item_count"`
	LedgerRowCount int       `json:"ledger_row_count"`
	MatchedCount   int       `json:"matched_count"`
	TotalDue       float64   `json:"total_due"`
	CreatedAt      time.Time `json:"created_at"`
}

// ResultRow is one exportable line of the audit report.
type ResultRow struct {
	RunID              string    `json:"run_id,omitempty"`
	DocNumber          int       `json:"doc_number"`
	IssuerName         string    `json:"issuer_name"`
	IssuerCNPJ         string    `json:"issuer_cnpj"`
	IssuerUF           string    `json:"issuer_uf"`
	CFOP               string    `json:"cfop"`
	ProductCode        string    `json:"product_code"`
	ProductDescription string    `json:"product_description"`
	IntegralBase       float64   `json:"integral_base"`
	LedgerValue        float64   `json:"ledger_value"`
	InterstateRate     float64   `json:"interstate_rate"` // percent
	Substitution       float64   `json:"substitution"`
	AmountDue          float64   `json:"amount_due"`
	Label              RuleLabel `json:"label"`
	Multiplicity       int       `json:"multiplicity"`
	MatchIndex         int       `json:"match_index"`
}
