package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sale-shoe-crawler/internal/store"
)

func TestRunStoreLifecycle(t *testing.T) {
	t.Parallel()

	runs := NewRunStore()
	ctx := context.Background()
	runID := uuid.New()
	start := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)

	require.NoError(t, runs.StartRun(ctx, runID, "adidas", start))
	require.NoError(t, runs.StartRun(ctx, runID, "adidas", start.Add(time.Minute)))

	run, err := runs.GetRun(ctx, runID)
	require.NoError(t, err)
	require.Equal(t, store.RunRunning, run.Status)
	require.Equal(t, start, run.StartedAt)
	require.Nil(t, run.FinishedAt)

	totals := store.RunTotals{Completed: 10, Failed: 1, Records: 8}
	require.NoError(t, runs.FinishRun(ctx, runID, start.Add(time.Hour), store.RunSuccess, totals, nil))

	run, err = runs.GetRun(ctx, runID)
	require.NoError(t, err)
	require.Equal(t, store.RunSuccess, run.Status)
	require.Equal(t, totals, run.Totals)
	require.NotNil(t, run.FinishedAt)
	require.Equal(t, start.Add(time.Hour), *run.FinishedAt)
}

func TestRunStoreGetMissing(t *testing.T) {
	t.Parallel()

	_, err := NewRunStore().GetRun(context.Background(), uuid.New())
	require.ErrorIs(t, err, store.ErrNotFound)
}
