// Package audit orchestrates one reconciliation pass: unpack, parse, load,
// match, compute, aggregate, persist.
package audit

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mariibrb/dizimeiro/internal/archive"
	"github.com/mariibrb/dizimeiro/internal/cnpj"
	"github.com/mariibrb/dizimeiro/internal/difal"
	"github.com/mariibrb/dizimeiro/internal/domain"
	"github.com/mariibrb/dizimeiro/internal/ingestion"
	"github.com/mariibrb/dizimeiro/internal/reconciliation"
	"github.com/mariibrb/dizimeiro/internal/repository"
)

// Params is the taxpayer configuration for one run, supplied by the caller.
type Params struct {
	TargetCNPJ    string
	DestinationUF string
	Regime        domain.TaxRegime
	RateSource    difal.RateSource
	MatchMode     reconciliation.Mode
	LedgerLayout  ingestion.LedgerLayout
}

// Service runs audits and records them.
type Service struct {
	repo   *repository.AuditRepo
	tables difal.Tables
	log    zerolog.Logger
}

func NewService(repo *repository.AuditRepo, tables difal.Tables, log zerolog.Logger) *Service {
	return &Service{repo: repo, tables: tables, log: log}
}

// Run executes the full pipeline over the uploaded blobs and the optional
// ledger (nil means no ledger was supplied and every line item passes
// through). Configuration problems — an invalid target CNPJ, an unknown
// destination UF — come back as errors before anything is computed; dirty
// input data never does.
func (s *Service) Run(params Params, uploads []archive.Blob, ledgerCSV []byte) (*domain.AuditRun, []domain.ResultRow, error) {
	target := cnpj.Normalize(params.TargetCNPJ)
	if target == "" {
		return nil, nil, fmt.Errorf("invalid target CNPJ: %q", params.TargetCNPJ)
	}

	engine, err := difal.New(s.tables, params.Regime, params.DestinationUF, params.RateSource, s.log)
	if err != nil {
		return nil, nil, err
	}

	docCount, items := s.collectItems(uploads, target)

	var ledger []domain.LedgerRecord
	if ledgerCSV != nil {
		ledger, err = ingestion.ParseLedgerCSV(ledgerCSV, params.LedgerLayout)
		if err != nil {
			return nil, nil, fmt.Errorf("parse ledger: %w", err)
		}
	}

	matched := reconciliation.Match(items, ledger, params.MatchMode)

	rows := make([]domain.ResultRow, 0, len(matched))
	for _, m := range matched {
		res := engine.Compute(m)
		row := domain.ResultRow{
			DocNumber:          m.Item.DocNumber,
			IssuerName:         m.Item.IssuerName,
			IssuerCNPJ:         m.Item.IssuerCNPJ,
			IssuerUF:           m.Item.IssuerUF,
			CFOP:               m.ApplicableCFOP(),
			ProductCode:        m.Item.ProductCode,
			ProductDescription: m.Item.ProductDescription,
			IntegralBase:       m.Item.IntegralBase,
			InterstateRate:     engine.InterstateRatePercent(m.Item),
			Substitution:       m.Item.Substitution,
			AmountDue:          res.Amount,
			Label:              res.Label,
			Multiplicity:       m.Multiplicity,
			MatchIndex:         m.MatchIndex,
		}
		if m.Ledger != nil {
			row.LedgerValue = m.Ledger.BookedValue
		}
		rows = append(rows, row)
	}

	total, ordered := difal.Aggregate(rows)

	run := &domain.AuditRun{
		ID:             uuid.NewString(),
		TargetCNPJ:     target,
		DestinationUF:  params.DestinationUF,
		Regime:         params.Regime,
		RateSource:     string(params.RateSource),
		MatchMode:      string(params.MatchMode),
		DocumentCount:  docCount,
		LineItemCount:  len(items),
		LedgerRowCount: len(ledger),
		MatchedCount:   len(matched),
		TotalDue:       total,
		CreatedAt:      time.Now().UTC(),
	}
	for i := range ordered {
		ordered[i].RunID = run.ID
	}

	if err := s.repo.InsertRun(run); err != nil {
		return nil, nil, fmt.Errorf("insert run: %w", err)
	}
	if err := s.repo.InsertResults(run.ID, ordered); err != nil {
		return nil, nil, fmt.Errorf("insert results: %w", err)
	}

	s.log.Info().
		Str("run_id", run.ID).
		Int("documents", docCount).
		Int("line_items", len(items)).
		Int("matched", len(matched)).
		Float64("total_due", total).
		Msg("audit completed")

	return run, ordered, nil
}

// collectItems unpacks and parses each top-level upload in parallel. Each
// blob's traversal is independent and writes only its own slot; the slots
// are concatenated after the join so output order follows upload order.
func (s *Service) collectItems(uploads []archive.Blob, target string) (int, []domain.LineItem) {
	type blobResult struct {
		docs  int
		items []domain.LineItem
	}

	results := make([]blobResult, len(uploads))
	var wg sync.WaitGroup
	for i, blob := range uploads {
		wg.Add(1)
		go func(i int, blob archive.Blob) {
			defer wg.Done()
			docs := archive.Unpack(blob)
			res := blobResult{docs: len(docs)}
			for _, doc := range docs {
				res.items = append(res.items, ingestion.ParseNFeXML(doc.Data, target)...)
			}
			results[i] = res
		}(i, blob)
	}
	wg.Wait()

	docCount := 0
	var items []domain.LineItem
	for _, res := range results {
		docCount += res.docs
		items = append(items, res.items...)
	}
	return docCount, items
}
