package export

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Hussein-Mohammed/ScriptSight/pkg/postgres"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS export_runs (
	id            TEXT PRIMARY KEY,
	collection    TEXT NOT NULL,
	query         TEXT NOT NULL,
	folder        TEXT NOT NULL,
	pages_total   INT NOT NULL,
	pages_copied  INT NOT NULL,
	pages_skipped INT NOT NULL,
	status        TEXT NOT NULL,
	error         TEXT NOT NULL DEFAULT '',
	started_at    TIMESTAMPTZ NOT NULL,
	duration_ms   BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS export_runs_collection_idx ON export_runs (collection, started_at DESC);
`

// Ledger persists export runs in Postgres so past exports stay auditable
// across restarts.
type Ledger struct {
	client *postgres.Client
}

func NewLedger(ctx context.Context, client *postgres.Client) (*Ledger, error) {
	if _, err := client.DB.ExecContext(ctx, ledgerSchema); err != nil {
		return nil, fmt.Errorf("ensuring export_runs schema: %w", err)
	}
	return &Ledger{client: client}, nil
}

// Record writes one run. Runs are immutable once written.
func (l *Ledger) Record(ctx context.Context, run *Run) error {
	return l.client.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO export_runs
				(id, collection, query, folder, pages_total, pages_copied, pages_skipped, status, error, started_at, duration_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			run.ID, run.Collection, run.Query, run.Folder,
			run.PagesTotal, run.PagesCopied, run.PagesSkipped,
			run.Status, run.Error, run.StartedAt, run.Duration.Milliseconds(),
		)
		return err
	})
}

// Recent returns up to limit runs, newest first, optionally filtered by
// collection.
func (l *Ledger) Recent(ctx context.Context, collection string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.client.DB.QueryContext(ctx, `
		SELECT id, collection, query, folder, pages_total, pages_copied, pages_skipped, status, error, started_at, duration_ms
		FROM export_runs
		WHERE ($1 = '' OR collection = $1)
		ORDER BY started_at DESC
		LIMIT $2`, collection, limit)
	if err != nil {
		return nil, fmt.Errorf("querying export runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var durationMS int64
		if err := rows.Scan(&run.ID, &run.Collection, &run.Query, &run.Folder,
			&run.PagesTotal, &run.PagesCopied, &run.PagesSkipped,
			&run.Status, &run.Error, &run.StartedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("scanning export run: %w", err)
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
