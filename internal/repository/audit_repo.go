package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mariibrb/dizimeiro/internal/domain"
)

// AuditRepo stores completed audit runs and their result rows. Results are
// written once per run and never updated; position preserves the aggregated
// presentation order.
type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) InsertRun(run *domain.AuditRun) error {
	_, err := r.db.Exec(
		`INSERT INTO audit_runs
		(id, target_cnpj, destination_uf, regime, rate_source, match_mode,
		 document_count, line_item_count, ledger_row_count, matched_count,
		 total_due, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		run.ID, run.TargetCNPJ, run.DestinationUF, string(run.Regime),
		run.RateSource, run.MatchMode, run.DocumentCount, run.LineItemCount,
		run.LedgerRowCount, run.MatchedCount, run.TotalDue,
		run.CreatedAt.Format(time.RFC3339),
	)
	return err
}

func (r *AuditRepo) InsertResults(runID string, rows []domain.ResultRow) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO audit_results
		(run_id, position, doc_number, issuer_name, issuer_cnpj, issuer_uf,
		 cfop, product_code, product_description, integral_base, ledger_value,
		 interstate_rate, substitution, amount_due, label, multiplicity, match_index)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		_, err := stmt.Exec(
			runID, i, row.DocNumber, row.IssuerName, row.IssuerCNPJ,
			row.IssuerUF, row.CFOP, row.ProductCode, row.ProductDescription,
			row.IntegralBase, row.LedgerValue, row.InterstateRate,
			row.Substitution, row.AmountDue, string(row.Label),
			row.Multiplicity, row.MatchIndex,
		)
		if err != nil {
			return fmt.Errorf("insert result %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *AuditRepo) GetRun(id string) (*domain.AuditRun, error) {
	row := r.db.QueryRow(
		`SELECT id, target_cnpj, destination_uf, regime, rate_source, match_mode,
		 document_count, line_item_count, ledger_row_count, matched_count,
		 total_due, created_at
		 FROM audit_runs WHERE id = ?`, id,
	)
	return scanRun(row)
}

// ListRuns returns runs in reverse chronological order.
func (r *AuditRepo) ListRuns(limit int) ([]domain.AuditRun, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := r.db.Query(
		`SELECT id, target_cnpj, destination_uf, regime, rate_source, match_mode,
		 document_count, line_item_count, ledger_row_count, matched_count,
		 total_due, created_at
		 FROM audit_runs ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.AuditRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetResults returns a run's rows in stored presentation order. With
// actionableOnly the zero-amount rows are filtered out; the full dataset
// stays untouched in the table.
func (r *AuditRepo) GetResults(runID string, actionableOnly bool) ([]domain.ResultRow, error) {
	query := `SELECT run_id, doc_number, issuer_name, issuer_cnpj, issuer_uf,
		 cfop, product_code, product_description, integral_base, ledger_value,
		 interstate_rate, substitution, amount_due, label, multiplicity, match_index
		 FROM audit_results WHERE run_id = ?`
	if actionableOnly {
		query += " AND amount_due > 0"
	}
	query += " ORDER BY position"

	rows, err := r.db.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.ResultRow
	for rows.Next() {
		var row domain.ResultRow
		var label string
		err := rows.Scan(
			&row.RunID, &row.DocNumber, &row.IssuerName, &row.IssuerCNPJ,
			&row.IssuerUF, &row.CFOP, &row.ProductCode, &row.ProductDescription,
			&row.IntegralBase, &row.LedgerValue, &row.InterstateRate,
			&row.Substitution, &row.AmountDue, &label, &row.Multiplicity,
			&row.MatchIndex,
		)
		if err != nil {
			return nil, err
		}
		row.Label = domain.RuleLabel(label)
		results = append(results, row)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*domain.AuditRun, error) {
	var run domain.AuditRun
	var regime, createdAt string
	err := s.Scan(
		&run.ID, &run.TargetCNPJ, &run.DestinationUF, &regime, &run.RateSource,
		&run.MatchMode, &run.DocumentCount, &run.LineItemCount,
		&run.LedgerRowCount, &run.MatchedCount, &run.TotalDue, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	run.Regime = domain.TaxRegime(regime)
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		run.CreatedAt = t
	}
	return &run, nil
}
