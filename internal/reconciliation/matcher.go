// Package reconciliation joins parsed invoice line items against the
// purchases ledger on composite keys.
package reconciliation

import (
	"fmt"
	"strings"

	"github.com/mariibrb/dizimeiro/internal/domain"
)

// Mode selects the composite join key.
type Mode string

const (
	// ModeCFOP joins on (document number, movement code).
	ModeCFOP Mode = "cfop"
	// ModeProduct joins on (document number, product code).
	ModeProduct Mode = "product"
)

func ParseMode(s string) (Mode, error) {
	switch s {
	case "", string(ModeCFOP):
		return ModeCFOP, nil
	case string(ModeProduct):
		return ModeProduct, nil
	}
	return "", fmt.Errorf("unknown match mode: %q", s)
}

// Match performs the join between line items and ledger records.
//
// With a ledger (non-nil, possibly empty) the join is inner: an item with no
// ledger row for its key produces nothing. Several ledger rows on the same
// key fan the item out to one MatchedRecord per row; no deduplication is
// performed and each record carries the fan-out multiplicity. Unmatched
// ledger rows are discarded silently.
//
// With ledger == nil every item becomes a MatchedRecord with an absent
// ledger side; movement-code eligibility downstream then falls back to the
// item's own declared CFOP.
func Match(items []domain.LineItem, ledger []domain.LedgerRecord, mode Mode) []domain.MatchedRecord {
	if ledger == nil {
		matched := make([]domain.MatchedRecord, 0, len(items))
		for _, it := range items {
			matched = append(matched, domain.MatchedRecord{
				Item:         it,
				Multiplicity: 1,
				MatchIndex:   1,
			})
		}
		return matched
	}

	index := make(map[string][]*domain.LedgerRecord, len(ledger))
	for i := range ledger {
		rec := &ledger[i]
		index[ledgerKey(rec, mode)] = append(index[ledgerKey(rec, mode)], rec)
	}

	var matched []domain.MatchedRecord
	for _, it := range items {
		rows := index[itemKey(&it, mode)]
		for i, rec := range rows {
			matched = append(matched, domain.MatchedRecord{
				Item:         it,
				Ledger:       rec,
				Multiplicity: len(rows),
				MatchIndex:   i + 1,
			})
		}
	}
	return matched
}

// Product codes are compared case-insensitively; the ledger loader already
// uppercases its side.
func itemKey(it *domain.LineItem, mode Mode) string {
	if mode == ModeProduct {
		return fmt.Sprintf("%d|%s", it.DocNumber, strings.ToUpper(it.ProductCode))
	}
	return fmt.Sprintf("%d|%s", it.DocNumber, it.CFOP)
}

func ledgerKey(rec *domain.LedgerRecord, mode Mode) string {
	if mode == ModeProduct {
		return fmt.Sprintf("%d|%s", rec.DocNumber, strings.ToUpper(rec.ProductCode))
	}
	return fmt.Sprintf("%d|%s", rec.DocNumber, rec.CFOP)
}
