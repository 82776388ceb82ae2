package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/sale-shoe-crawler/internal/progress"
	"github.com/JakeFAU/sale-shoe-crawler/internal/store"
)

// TestStoreSinkPersistsRunMilestones ensures only run-level events reach the repository.
func TestStoreSinkPersistsRunMilestones(t *testing.T) {
	t.Parallel()

	repo := &fakeRunRepo{}
	sink := NewStoreSink(repo, nil)
	runUUID := uuid.New()
	runID := progress.UUIDToBytes(runUUID)
	now := time.Now()

	batch := []progress.Event{
		{RunID: runID, Stage: progress.StageRunStart, Profile: "nb", TS: now},
		{RunID: runID, Stage: progress.StageURLDone, Profile: "nb", URL: "https://newbalance.ru/sale/", TS: now},
		{RunID: runID, Stage: progress.StageRunHB, Profile: "nb", TS: now},
		{
			RunID:     runID,
			Stage:     progress.StageRunDone,
			Profile:   "nb",
			TS:        now.Add(3 * time.Second),
			Completed: 12,
			Failed:    2,
			Records:   40,
			Dur:       3 * time.Second,
		},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, []uuid.UUID{runUUID}, repo.starts)
	require.Equal(t, []string{"nb"}, repo.profiles)
	require.Len(t, repo.finishes, 1)
	got := repo.finishes[0]
	require.Equal(t, store.RunSuccess, got.status)
	require.Equal(t, store.RunTotals{Completed: 12, Failed: 2, Records: 40}, got.totals)
	require.Nil(t, got.errMsg)
}

// TestStoreSinkRecordsRunError keeps the error note on failed runs.
func TestStoreSinkRecordsRunError(t *testing.T) {
	t.Parallel()

	repo := &fakeRunRepo{}
	sink := NewStoreSink(repo, zap.NewNop())
	runID := progress.UUIDToBytes(uuid.New())

	err := sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, Stage: progress.StageRunError, Profile: "shein", TS: time.Now(), Note: "context canceled"},
	})
	require.NoError(t, err)
	require.Len(t, repo.finishes, 1)
	require.Equal(t, store.RunError, repo.finishes[0].status)
	require.NotNil(t, repo.finishes[0].errMsg)
	require.Equal(t, "context canceled", *repo.finishes[0].errMsg)
}

// TestStoreSinkHandlesErrors surfaces repository failures back to the caller.
func TestStoreSinkHandlesErrors(t *testing.T) {
	t.Parallel()

	repo := &fakeRunRepo{fail: true}
	sink := NewStoreSink(repo, nil)
	runID := progress.UUIDToBytes(uuid.New())
	err := sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, Stage: progress.StageRunStart, Profile: "nb", TS: time.Now()},
	})
	require.Error(t, err)
}

func TestStoreSinkNilRepo(t *testing.T) {
	t.Parallel()

	sink := NewStoreSink(nil, nil)
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{{Stage: progress.StageRunStart}}))
	require.NoError(t, sink.Close(context.Background()))
}

type fakeRunRepo struct {
	fail     bool
	starts   []uuid.UUID
	profiles []string
	finishes []finishCall
}

type finishCall struct {
	runID  uuid.UUID
	status store.RunStatus
	totals store.RunTotals
	errMsg *string
}

func (f *fakeRunRepo) StartRun(_ context.Context, runID uuid.UUID, profile string, _ time.Time) error {
	if f.fail {
		return assertErr("start")
	}
	f.starts = append(f.starts, runID)
	f.profiles = append(f.profiles, profile)
	return nil
}

func (f *fakeRunRepo) FinishRun(
	_ context.Context,
	runID uuid.UUID,
	_ time.Time,
	status store.RunStatus,
	totals store.RunTotals,
	errMsg *string,
) error {
	if f.fail {
		return assertErr("finish")
	}
	f.finishes = append(f.finishes, finishCall{runID: runID, status: status, totals: totals, errMsg: errMsg})
	return nil
}

func (f *fakeRunRepo) GetRun(context.Context, uuid.UUID) (store.Run, error) {
	return store.Run{}, store.ErrNotFound
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
