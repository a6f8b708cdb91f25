package difal

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mariibrb/dizimeiro/internal/domain"
)

// Aggregate orders rows descending by amount owed and returns the exact sum.
// No rounding is applied beyond the per-row rounding the engine already did.
// The input slice is not modified.
func Aggregate(rows []domain.ResultRow) (float64, []domain.ResultRow) {
	ordered := make([]domain.ResultRow, len(rows))
	copy(ordered, rows)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].AmountDue > ordered[j].AmountDue
	})

	total := decimal.Zero
	for _, r := range ordered {
		total = total.Add(decimal.NewFromFloat(r.AmountDue))
	}
	t, _ := total.Float64()
	return t, ordered
}

// Actionable filters the zero-amount rows out for presentation. The full
// set stays available for export.
func Actionable(rows []domain.ResultRow) []domain.ResultRow {
	var out []domain.ResultRow
	for _, r := range rows {
		if r.AmountDue > 0 {
			out = append(out, r)
		}
	}
	return out
}
