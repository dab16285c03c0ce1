package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/judgment-search/internal/core/domain"
)

// BatchRepository journals finished upload batches and their per-file outcomes.
type BatchRepository struct {
	db *sql.DB
}

func NewBatchRepository(db *sql.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	return openDB("pgx", dsn)
}

func openDB(driverName, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *BatchRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across console/CLI startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101701)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS upload_batches (
	id TEXT PRIMARY KEY,
	total INTEGER NOT NULL,
	success_count INTEGER NOT NULL,
	fail_count INTEGER NOT NULL,
	status TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS upload_outcomes (
	batch_id TEXT NOT NULL REFERENCES upload_batches(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	filename TEXT NOT NULL,
	succeeded BOOLEAN NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (batch_id, position)
);

CREATE INDEX IF NOT EXISTS idx_upload_batches_finished_at ON upload_batches(finished_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// SaveBatch writes the summary and its outcomes atomically. Saving the same
// batch twice replaces the earlier record.
func (r *BatchRepository) SaveBatch(ctx context.Context, summary domain.BatchSummary) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO upload_batches (id, total, success_count, fail_count, status, started_at, finished_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE
SET total = EXCLUDED.total,
	success_count = EXCLUDED.success_count,
	fail_count = EXCLUDED.fail_count,
	status = EXCLUDED.status,
	started_at = EXCLUDED.started_at,
	finished_at = EXCLUDED.finished_at
`,
		summary.ID, summary.Total, summary.SuccessCount, summary.FailCount, string(summary.Status),
		summary.StartedAt.UTC(), summary.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert batch: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM upload_outcomes WHERE batch_id = $1`, summary.ID); err != nil {
		return fmt.Errorf("clear batch outcomes: %w", err)
	}
	for i, outcome := range summary.Outcomes {
		_, err := tx.ExecContext(ctx, `
INSERT INTO upload_outcomes (batch_id, position, filename, succeeded, error_message)
VALUES ($1,$2,$3,$4,$5)
`, summary.ID, i, outcome.Name, outcome.Succeeded, outcome.Error)
		if err != nil {
			return fmt.Errorf("insert outcome %s: %w", outcome.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch tx: %w", err)
	}
	return nil
}

func (r *BatchRepository) GetBatch(ctx context.Context, id string) (*domain.BatchSummary, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, total, success_count, fail_count, status, started_at, finished_at
FROM upload_batches
WHERE id = $1
`, id)

	summary, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrBatchNotFound, "get batch", fmt.Errorf("batch_id=%s", id))
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT filename, succeeded, error_message
FROM upload_outcomes
WHERE batch_id = $1
ORDER BY position
`, id)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var outcome domain.UploadOutcome
		if err := rows.Scan(&outcome.Name, &outcome.Succeeded, &outcome.Error); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return &summary, nil
}

// ListRecent returns batch headers, newest first, without outcomes.
func (r *BatchRepository) ListRecent(ctx context.Context, limit int) ([]domain.BatchSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, total, success_count, fail_count, status, started_at, finished_at
FROM upload_batches
ORDER BY finished_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var out []domain.BatchSummary
	for rows.Next() {
		summary, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	return out, nil
}

type batchScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row batchScanner) (domain.BatchSummary, error) {
	var summary domain.BatchSummary
	var status string
	err := row.Scan(
		&summary.ID, &summary.Total, &summary.SuccessCount, &summary.FailCount,
		&status, &summary.StartedAt, &summary.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.BatchSummary{}, err
		}
		return domain.BatchSummary{}, fmt.Errorf("scan batch: %w", err)
	}
	summary.Status = domain.BatchStatus(status)
	return summary, nil
}
