package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/sale-shoe-crawler/internal/store"
)

// RunStore implements store.RunRepository over the crawl_runs table.
type RunStore struct {
	pool  querier
	table string
}

var _ store.RunRepository = (*RunStore)(nil)

// NewRunStore wraps a pool. Unlike ItemStore it does not own the pool; Close
// is the caller's business.
func NewRunStore(pool querier, table string) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := checkTable(table, "crawl_runs")
	if err != nil {
		return nil, err
	}
	return &RunStore{pool: pool, table: table}, nil
}

// EnsureSchema creates the run history table when it does not exist.
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id            UUID PRIMARY KEY,
	profile       TEXT NOT NULL,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ,
	status        TEXT NOT NULL,
	completed     INTEGER NOT NULL DEFAULT 0,
	failed        INTEGER NOT NULL DEFAULT 0,
	records       INTEGER NOT NULL DEFAULT 0,
	error_message TEXT
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// StartRun inserts a running row; a repeated start is ignored.
func (s *RunStore) StartRun(ctx context.Context, runID uuid.UUID, profile string, startedAt time.Time) error {
	query := fmt.Sprintf(`
INSERT INTO %s (id, profile, started_at, status)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO NOTHING`, s.table)
	if _, err := s.pool.Exec(ctx, query, runID, profile, startedAt, string(store.RunRunning)); err != nil {
		return fmt.Errorf("start run %s: %w", runID, err)
	}
	return nil
}

// FinishRun records the terminal status and totals.
func (s *RunStore) FinishRun(
	ctx context.Context,
	runID uuid.UUID,
	finishedAt time.Time,
	status store.RunStatus,
	totals store.RunTotals,
	errMsg *string,
) error {
	query := fmt.Sprintf(`
UPDATE %s
SET finished_at = $1, status = $2, completed = $3, failed = $4, records = $5, error_message = $6
WHERE id = $7`, s.table)
	tag, err := s.pool.Exec(ctx, query,
		finishedAt, string(status), totals.Completed, totals.Failed, totals.Records, errMsg, runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finish run %s: %w", runID, store.ErrNotFound)
	}
	return nil
}

// GetRun loads one run or returns store.ErrNotFound.
func (s *RunStore) GetRun(ctx context.Context, runID uuid.UUID) (store.Run, error) {
	query := fmt.Sprintf(`
SELECT id, profile, started_at, finished_at, status, completed, failed, records, error_message
FROM %s
WHERE id = $1`, s.table)
	var (
		run    store.Run
		status string
	)
	err := s.pool.QueryRow(ctx, query, runID).Scan(
		&run.ID,
		&run.Profile,
		&run.StartedAt,
		&run.FinishedAt,
		&status,
		&run.Totals.Completed,
		&run.Totals.Failed,
		&run.Totals.Records,
		&run.ErrorMessage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Run{}, store.ErrNotFound
		}
		return store.Run{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	run.Status = store.RunStatus(status)
	return run, nil
}
