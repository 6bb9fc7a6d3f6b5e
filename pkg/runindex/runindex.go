// Package runindex is a local run registry: a pure-Go SQLite database
// (no network dependency, matching the engine's offline invariant) that
// records one row per evaluation run so operators can query run history
// without re-parsing every run directory's decision.json.
package runindex

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one run's registry entry.
type Record struct {
	RunID        string
	PromiseID    string
	Verdict      string
	Credence     float64
	TimestampUTC time.Time
	RunDir       string
}

// Index wraps a *sql.DB holding the runs table.
type Index struct {
	db *sql.DB
}

// Open opens (creating if absent) a SQLite database at path and migrates
// the schema.
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("runindex: open: %w", err)
	}
	idx := &Index{db: db}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

// New wraps an already-open *sql.DB (e.g. a sqlmock connection in tests),
// migrating its schema.
func New(db *sql.DB) (*Index, error) {
	idx := &Index{db: db}
	if err := idx.migrate(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		promise_id TEXT NOT NULL,
		verdict TEXT NOT NULL,
		credence REAL NOT NULL,
		timestamp_utc TEXT NOT NULL,
		run_dir TEXT NOT NULL
	);`
	_, err := idx.db.ExecContext(context.Background(), query)
	if err != nil {
		return fmt.Errorf("runindex: migrate: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// Insert records one run.
func (idx *Index) Insert(ctx context.Context, r Record) error {
	query := `INSERT INTO runs (run_id, promise_id, verdict, credence, timestamp_utc, run_dir) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := idx.db.ExecContext(ctx, query, r.RunID, r.PromiseID, r.Verdict, r.Credence, r.TimestampUTC.UTC().Format(time.RFC3339), r.RunDir)
	if err != nil {
		return fmt.Errorf("runindex: insert: %w", err)
	}
	return nil
}

// Get returns the record for runID.
func (idx *Index) Get(ctx context.Context, runID string) (*Record, error) {
	query := `SELECT run_id, promise_id, verdict, credence, timestamp_utc, run_dir FROM runs WHERE run_id = ?`
	row := idx.db.QueryRowContext(ctx, query, runID)
	return scanRecord(row)
}

// ListByPromise returns the most recent runs for promiseID, newest first.
func (idx *Index) ListByPromise(ctx context.Context, promiseID string, limit int) ([]Record, error) {
	query := `SELECT run_id, promise_id, verdict, credence, timestamp_utc, run_dir FROM runs WHERE promise_id = ? ORDER BY timestamp_utc DESC LIMIT ?`
	rows, err := idx.db.QueryContext(ctx, query, promiseID, limit)
	if err != nil {
		return nil, fmt.Errorf("runindex: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecordRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("runindex: list: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row *sql.Row) (*Record, error) {
	return scanRecordAny(row)
}

func scanRecordRows(rows *sql.Rows) (*Record, error) {
	return scanRecordAny(rows)
}

func scanRecordAny(s rowScanner) (*Record, error) {
	var r Record
	var ts string
	if err := s.Scan(&r.RunID, &r.PromiseID, &r.Verdict, &r.Credence, &ts, &r.RunDir); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("runindex: run not found")
		}
		return nil, fmt.Errorf("runindex: scan: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339, ts)
	if err == nil {
		r.TimestampUTC = parsed
	}
	return &r, nil
}
