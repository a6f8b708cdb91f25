package ingestion

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/mariibrb/dizimeiro/internal/domain"
)

// LedgerLayout locates the ledger columns by ordinal position. The table has
// no reliable header; the caller supplies the positions and how many leading
// junk rows to skip.
type LedgerLayout struct {
	SkipRows   int `json:"skip_rows"`
	DocCol     int `json:"doc_col"`
	CFOPCol    int `json:"cfop_col"`
	ProductCol int `json:"product_col"`
	DescCol    int `json:"desc_col"`
	ValueCol   int `json:"value_col"`
}

// DefaultLedgerLayout matches the accounting system export this auditor was
// built around: five banner rows, then document, CFOP, product, description
// and booked value.
func DefaultLedgerLayout() LedgerLayout {
	return LedgerLayout{SkipRows: 5, DocCol: 0, CFOPCol: 1, ProductCol: 2, DescCol: 3, ValueCol: 4}
}

// ParseLedgerCSV parses the semicolon-separated, latin-1 encoded purchases
// ledger. Malformed rows degrade field by field instead of being rejected:
// an unparsable booked value becomes 0.0 and an unparsable document number
// keeps the row alive but unmatchable. Summary rows (description containing
// TOTAL) are dropped.
func ParseLedgerCSV(data []byte, layout LedgerLayout) ([]domain.LedgerRecord, error) {
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode latin-1: %w", err)
	}

	reader := csv.NewReader(strings.NewReader(string(decoded)))
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var records []domain.LedgerRecord
	lineNum := 0

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A row the CSV layer cannot split at all is skipped, not fatal.
			continue
		}
		lineNum++
		if lineNum <= layout.SkipRows {
			continue
		}

		desc := NormalizeText(field(row, layout.DescCol))
		if desc == "" && field(row, layout.DocCol) == "" {
			continue
		}
		if strings.Contains(desc, "TOTAL") {
			continue
		}

		rec := domain.LedgerRecord{
			DocNumber:   coerceInt(field(row, layout.DocCol)),
			CFOP:        cleanCFOP(field(row, layout.CFOPCol)),
			ProductCode: NormalizeText(field(row, layout.ProductCol)),
			Description: desc,
			BookedValue: CoerceNumber(field(row, layout.ValueCol)),
		}
		records = append(records, rec)
	}

	return records, nil
}

func field(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// cleanCFOP strips the separators some exports put inside movement codes
// ("1-556" -> "1556").
func cleanCFOP(s string) string {
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, ".", "")
	return strings.TrimSpace(s)
}

func coerceInt(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return v
}

// CoerceNumber converts pt-BR formatted numeric text to a float. Both the
// plain decimal-comma convention ("1234,56") and the thousands-dot one
// ("1.234,56") are accepted. Text containing letters, or anything else that
// will not coerce, degrades to 0.0.
func CoerceNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	for _, r := range s {
		if unicode.IsLetter(r) {
			return 0
		}
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// NormalizeText uppercases a field and strips diacritics so ledger text
// compares reliably against other sources ("São Paulo" -> "SAO PAULO").
// The transformer chain is stateful, so it is built per call.
func NormalizeText(s string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		out = s
	}
	return strings.ToUpper(strings.TrimSpace(out))
}
