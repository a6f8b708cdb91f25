package domain

import "fmt"

type TaxRegime string

const (
	RegimeNormal  TaxRegime = "normal"
	RegimeSimples TaxRegime = "simples"
)

// ParseRegime accepts the wire spellings used by the upload form.
func ParseRegime(s string) (TaxRegime, error) {
	switch s {
	case "", "normal":
		return RegimeNormal, nil
	case "simples", "simples_nacional":
		return RegimeSimples, nil
	}
	return "", fmt.Errorf("unknown tax regime: %q", s)
}

// FiscalDocument is one parsed NF-e. A document is only usable when the
// number and both CNPJs are present; the parser discards it otherwise.
type FiscalDocument struct {
	Number        int        `json:"number"`
	IssuerCNPJ    string     `json:"issuer_cnpj"`
	IssuerName    string     `json:"issuer_name"`
	IssuerUF      string     `json:"issuer_uf"`
	RecipientCNPJ string     `json:"recipient_cnpj"`
	Items         []LineItem `json:"items"`
}

// LineItem is one det entry of an NF-e, stamped with its document context
// so it can flow through reconciliation on its own.
type LineItem struct {
	DocNumber  int    `json:"doc_number"`
	IssuerCNPJ string `json:"issuer_cnpj"`
	IssuerName string `json:"issuer_name"`
	IssuerUF   string `json:"issuer_uf"`

	ProductCode        string `json:"product_code"`
	ProductDescription string `json:"product_description"`
	CFOP               string `json:"cfop"`

	MerchandiseValue float64 `json:"merchandise_value"` // vProd
	Excise           float64 `json:"excise"`            // vIPI
	Freight          float64 `json:"freight"`           // vFrete
	Insurance        float64 `json:"insurance"`         // vSeg
	OtherCharges     float64 `json:"other_charges"`     // vOutro
	Discount         float64 `json:"discount"`          // vDesc

	OriginCode   string  `json:"origin_code"`   // orig
	DeclaredRate float64 `json:"declared_rate"` // pICMS, percent
	DeclaredTax  float64 `json:"declared_tax"`  // vICMS
	Substitution float64 `json:"substitution"`  // vICMSST

	// IntegralBase is computed once at parse time and never recomputed:
	// vProd + vIPI + vFrete + vOutro + vSeg - vDesc, rounded to 2 decimals.
	IntegralBase float64 `json:"integral_base"`
}

// Flatten returns the document's items with the header fields stamped in.
func (d *FiscalDocument) Flatten() []LineItem {
	items := make([]LineItem, len(d.Items))
	for i, it := range d.Items {
		it.DocNumber = d.Number
		it.IssuerCNPJ = d.IssuerCNPJ
		it.IssuerName = d.IssuerName
		it.IssuerUF = d.IssuerUF
		items[i] = it
	}
	return items
}
