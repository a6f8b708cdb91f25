package repository

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens (or creates) a SQLite database at the given path and ensures
// all required tables exist. Pass ":memory:" for an in-memory database.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audit_runs (
			id TEXT PRIMARY KEY,
			target_cnpj TEXT NOT NULL,
			destination_uf TEXT NOT NULL,
			regime TEXT NOT NULL,
			rate_source TEXT NOT NULL,
			match_mode TEXT NOT NULL,
			document_count INTEGER NOT NULL,
			line_item_count INTEGER NOT NULL,
			ledger_row_count INTEGER NOT NULL,
			matched_count INTEGER NOT NULL,
			total_due REAL NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_runs_created_at ON audit_runs(created_at)`,

		`CREATE TABLE IF NOT EXISTS audit_results (
			run_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			doc_number INTEGER NOT NULL,
			issuer_name TEXT NOT NULL,
			issuer_cnpj TEXT NOT NULL,
			issuer_uf TEXT NOT NULL,
			cfop TEXT NOT NULL,
			product_code TEXT NOT NULL,
			product_description TEXT NOT NULL,
			integral_base REAL NOT NULL,
			ledger_value REAL NOT NULL,
			interstate_rate REAL NOT NULL,
			substitution REAL NOT NULL,
			amount_due REAL NOT NULL,
			label TEXT NOT NULL,
			multiplicity INTEGER NOT NULL,
			match_index INTEGER NOT NULL,
			PRIMARY KEY (run_id, position),
			FOREIGN KEY (run_id) REFERENCES audit_runs(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_results_run ON audit_results(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_results_amount ON audit_results(amount_due)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}

	return nil
}
