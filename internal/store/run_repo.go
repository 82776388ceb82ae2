package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested run does not exist.
var ErrNotFound = errors.New("crawl run not found")

// RunStatus mirrors the crawl_runs status column.
type RunStatus string

// Run statuses persisted in crawl_runs.status.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// RunTotals are the frontier counts recorded when a run ends.
type RunTotals struct {
	Completed int
	Failed    int
	Records   int
}

// Run models one row of crawl_runs.
type Run struct {
	ID           uuid.UUID
	Profile      string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Status       RunStatus
	Totals       RunTotals
	ErrorMessage *string
}

// RunRepository persists crawl run history.
type RunRepository interface {
	// StartRun inserts the run as running; repeating it is a no-op.
	StartRun(ctx context.Context, runID uuid.UUID, profile string, startedAt time.Time) error
	// FinishRun records the final status, totals and optional error.
	FinishRun(
		ctx context.Context,
		runID uuid.UUID,
		finishedAt time.Time,
		status RunStatus,
		totals RunTotals,
		errMsg *string,
	) error
	// GetRun loads one run or returns ErrNotFound.
	GetRun(ctx context.Context, runID uuid.UUID) (Run, error)
}
