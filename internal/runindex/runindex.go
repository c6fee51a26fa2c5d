// Package runindex keeps a small sqlite ledger of completed report runs so
// different runs of the same day stay comparable.
package runindex

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one completed pipeline invocation.
type Run struct {
	Date         string
	RunID        string
	ReportPath   string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	Degraded     bool
	CreatedAt    time.Time
}

// Index is the sqlite-backed run ledger.
type Index struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	date          TEXT NOT NULL,
	run_id        TEXT NOT NULL,
	report_path   TEXT NOT NULL,
	input_tokens  INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	cost_usd      REAL NOT NULL DEFAULT 0,
	degraded      INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL,
	PRIMARY KEY (date, run_id)
);
CREATE INDEX IF NOT EXISTS idx_runs_date ON runs(date);
`

// Open opens (creating if needed) the ledger at path.
func Open(path string) (*Index, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run index: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init run index schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Close closes the underlying database.
func (x *Index) Close() error { return x.db.Close() }

// Record inserts one run. A duplicate (date, run_id) is replaced: the run
// directory is write-once, so a replay carries the same facts.
func (x *Index) Record(ctx context.Context, r Run) error {
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := x.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
			(date, run_id, report_path, input_tokens, output_tokens, cost_usd, degraded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Date, r.RunID, r.ReportPath, r.InputTokens, r.OutputTokens,
		r.CostUSD, boolToInt(r.Degraded), created.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// ByDate lists runs for one date, newest first.
func (x *Index) ByDate(ctx context.Context, date string) ([]Run, error) {
	rows, err := x.db.QueryContext(ctx, `
		SELECT date, run_id, report_path, input_tokens, output_tokens, cost_usd, degraded, created_at
		FROM runs WHERE date = ? ORDER BY created_at DESC`, date)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var degraded int
		var created string
		if err := rows.Scan(&r.Date, &r.RunID, &r.ReportPath, &r.InputTokens,
			&r.OutputTokens, &r.CostUSD, &degraded, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Degraded = degraded != 0
		r.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Latest returns the most recent run for a date, or nil.
func (x *Index) Latest(ctx context.Context, date string) (*Run, error) {
	runs, err := x.ByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
