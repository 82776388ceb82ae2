package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/sale-shoe-crawler/internal/store"
)

// RunStore keeps crawl run history for dry runs and tests.
type RunStore struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]store.Run
}

var _ store.RunRepository = (*RunStore)(nil)

// NewRunStore constructs an empty RunStore.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[uuid.UUID]store.Run)}
}

// StartRun records a running run; repeated calls keep the first start.
func (s *RunStore) StartRun(_ context.Context, runID uuid.UUID, profile string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[runID]; ok {
		return nil
	}
	s.runs[runID] = store.Run{
		ID:        runID,
		Profile:   profile,
		StartedAt: startedAt.UTC(),
		Status:    store.RunRunning,
	}
	return nil
}

// FinishRun stores the terminal status. Unknown runs are created on the fly
// so a lost start event does not drop the totals.
func (s *RunStore) FinishRun(
	_ context.Context,
	runID uuid.UUID,
	finishedAt time.Time,
	status store.RunStatus,
	totals store.RunTotals,
	errMsg *string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		run = store.Run{ID: runID, StartedAt: finishedAt.UTC()}
	}
	finished := finishedAt.UTC()
	run.FinishedAt = &finished
	run.Status = status
	run.Totals = totals
	run.ErrorMessage = cloneString(errMsg)
	s.runs[runID] = run
	return nil
}

// GetRun returns the run or store.ErrNotFound.
func (s *RunStore) GetRun(_ context.Context, runID uuid.UUID) (store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return store.Run{}, store.ErrNotFound
	}
	return run, nil
}
