package ingestion

import (
	"bytes"
	"encoding/xml"
	"math"
	"strconv"
	"strings"

	"github.com/mariibrb/dizimeiro/internal/cnpj"
	"github.com/mariibrb/dizimeiro/internal/domain"
)

// Wire structs for the NF-e layout. Tags are unqualified so they match the
// portalfiscal namespace as well as namespace-less test fixtures.
type infNFeXML struct {
	Ide struct {
		NNF string `xml:"nNF"`
	} `xml:"ide"`
	Emit struct {
		CNPJ  string `xml:"CNPJ"`
		XNome string `xml:"xNome"`
		Ender struct {
			UF string `xml:"UF"`
		} `xml:"enderEmit"`
	} `xml:"emit"`
	Dest struct {
		CNPJ string `xml:"CNPJ"`
	} `xml:"dest"`
	Det []detXML `xml:"det"`
}

type detXML struct {
	Prod struct {
		CProd  string `xml:"cProd"`
		XProd  string `xml:"xProd"`
		CFOP   string `xml:"CFOP"`
		VProd  string `xml:"vProd"`
		VFrete string `xml:"vFrete"`
		VSeg   string `xml:"vSeg"`
		VDesc  string `xml:"vDesc"`
		VOutro string `xml:"vOutro"`
	} `xml:"prod"`
	Imposto struct {
		VIPI string  `xml:"IPI>IPITrib>vIPI"`
		ICMS icmsXML `xml:"ICMS"`
	} `xml:"imposto"`
}

// icmsXML captures the regime-specific child (ICMS00, ICMS20, ICMSSN102, …)
// generically; the first sub-node wins, later regimes in sequence are not
// merged.
type icmsXML struct {
	Regimes []icmsRegimeXML `xml:",any"`
}

type icmsRegimeXML struct {
	XMLName xml.Name
	Orig    string `xml:"orig"`
	PICMS   string `xml:"pICMS"`
	VICMS   string `xml:"vICMS"`
	VICMSST string `xml:"vICMSST"`
}

// ParseNFeXML converts one invoice document into line items for the given
// recipient. It returns nil for documents that are malformed, addressed to
// someone else, or issued by an affiliate of the target — all filtered
// inputs, not errors. Extraction is atomic per document: one bad required
// field means zero items.
func ParseNFeXML(data []byte, targetCNPJ string) []domain.LineItem {
	doc := ParseFiscalDocument(data)
	if doc == nil {
		return nil
	}

	target := cnpj.Normalize(targetCNPJ)
	if target == "" || doc.RecipientCNPJ != target {
		return nil
	}
	// Intra-group transfers are never taxed by this engine.
	if cnpj.SameGroup(doc.IssuerCNPJ, target) {
		return nil
	}

	return doc.Flatten()
}

// ParseFiscalDocument extracts the document header and every line entry,
// without applying the recipient filter. Returns nil when the invoice-info
// root is absent or a required field will not parse.
func ParseFiscalDocument(data []byte) *domain.FiscalDocument {
	inf, ok := decodeInfNFe(data)
	if !ok {
		return nil
	}

	number, err := strconv.Atoi(strings.TrimSpace(inf.Ide.NNF))
	if err != nil {
		return nil
	}

	issuer := cnpj.Normalize(inf.Emit.CNPJ)
	recipient := cnpj.Normalize(inf.Dest.CNPJ)
	if issuer == "" || recipient == "" {
		return nil
	}

	doc := &domain.FiscalDocument{
		Number:        number,
		IssuerCNPJ:    issuer,
		IssuerName:    strings.TrimSpace(inf.Emit.XNome),
		IssuerUF:      strings.ToUpper(strings.TrimSpace(inf.Emit.Ender.UF)),
		RecipientCNPJ: recipient,
	}

	for _, det := range inf.Det {
		item, ok := extractItem(det)
		if !ok {
			return nil
		}
		doc.Items = append(doc.Items, item)
	}

	return doc
}

// decodeInfNFe walks the token stream to the infNFe node so the same code
// handles <nfeProc>, <NFe> and bare <infNFe> roots.
func decodeInfNFe(data []byte) (*infNFeXML, bool) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "infNFe" {
			continue
		}
		var inf infNFeXML
		if err := dec.DecodeElement(&inf, &se); err != nil {
			return nil, false
		}
		return &inf, true
	}
}

func extractItem(det detXML) (domain.LineItem, bool) {
	var item domain.LineItem

	item.CFOP = strings.TrimSpace(det.Prod.CFOP)
	if item.CFOP == "" {
		return item, false
	}
	item.ProductCode = strings.TrimSpace(det.Prod.CProd)
	item.ProductDescription = strings.TrimSpace(det.Prod.XProd)

	vProd, err := strconv.ParseFloat(strings.TrimSpace(det.Prod.VProd), 64)
	if err != nil {
		return item, false
	}
	item.MerchandiseValue = vProd

	// Each accessory field is independently optional.
	item.Excise = optionalFloat(det.Imposto.VIPI)
	item.Freight = optionalFloat(det.Prod.VFrete)
	item.Insurance = optionalFloat(det.Prod.VSeg)
	item.OtherCharges = optionalFloat(det.Prod.VOutro)
	item.Discount = optionalFloat(det.Prod.VDesc)

	// First matching tax-detail sub-node; none at all means all-zero values.
	if len(det.Imposto.ICMS.Regimes) > 0 {
		reg := det.Imposto.ICMS.Regimes[0]
		item.OriginCode = strings.TrimSpace(reg.Orig)
		item.DeclaredRate = optionalFloat(reg.PICMS)
		item.DeclaredTax = optionalFloat(reg.VICMS)
		item.Substitution = optionalFloat(reg.VICMSST)
	}

	item.IntegralBase = round2(item.MerchandiseValue + item.Excise +
		item.Freight + item.OtherCharges + item.Insurance - item.Discount)

	return item, true
}

func optionalFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
