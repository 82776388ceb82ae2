package app

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/sale-shoe-crawler/internal/config"
	"github.com/JakeFAU/sale-shoe-crawler/internal/profile"
	memorypublisher "github.com/JakeFAU/sale-shoe-crawler/internal/publisher/memory"
	"github.com/JakeFAU/sale-shoe-crawler/internal/storage/memory"
	"github.com/JakeFAU/sale-shoe-crawler/internal/store"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func dryRun() Options {
	return Options{DryRun: true, Registerer: prometheus.NewRegistry()}
}

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), testConfig(t), zap.NewNop(), Options{Registerer: prometheus.NewRegistry()})
	require.ErrorIs(t, err, ErrDSNRequired)
}

func TestNewDryRunUsesMemoryServices(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Storage.Archive = config.ArchiveMemory
	cfg.PubSub.TopicName = "items"

	a, err := New(context.Background(), cfg, zap.NewNop(), dryRun())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	require.IsType(t, &memory.ItemStore{}, a.Items())
	require.IsType(t, &memory.RunStore{}, a.Runs())
	require.IsType(t, &memory.BlobStore{}, a.archive)
	require.Equal(t, "pages", a.archivePrefix)
	require.IsType(t, &memorypublisher.Publisher{}, a.publisher)
	require.Nil(t, a.headless)
	require.NotNil(t, a.Logger())
}

func TestNewLocalArchive(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Storage.Archive = config.ArchiveLocal
	cfg.Storage.LocalDir = t.TempDir()

	a, err := New(context.Background(), cfg, nil, dryRun())
	require.NoError(t, err)
	t.Cleanup(a.Close)
	require.NotNil(t, a.archive)
}

func TestNewRejectsUnknownArchive(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Storage.Archive = "s3"

	_, err := New(context.Background(), cfg, zap.NewNop(), dryRun())
	require.ErrorContains(t, err, "unknown archive kind")
}

func TestNewDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, zap.NewNop(), Options{DryRun: true, Registerer: reg})
	require.NoError(t, err)
	t.Cleanup(a.Close)

	_, err = New(context.Background(), cfg, zap.NewNop(), Options{DryRun: true, Registerer: reg})
	require.ErrorContains(t, err, "init progress metrics")
}

func TestCrawlUnknownProfile(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), testConfig(t), zap.NewNop(), dryRun())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	_, err = a.Crawl(context.Background(), "puma", nil)
	require.ErrorIs(t, err, profile.ErrUnknownProfile)
}

func TestCrawlInterruptedRecordsRun(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Ops.Addr = "127.0.0.1:0"
	a, err := New(context.Background(), cfg, zap.NewNop(), dryRun())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := a.Crawl(ctx, "lacoste", nil)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	require.Contains(t, err.Error(), "crawl interrupted")
	require.Equal(t, "lacoste", summary.Profile)
	require.Zero(t, summary.Records)

	run, err := a.Runs().GetRun(context.Background(), summary.RunID)
	require.NoError(t, err)
	require.Equal(t, store.RunError, run.Status)
	require.Equal(t, "lacoste", run.Profile)
	require.NotNil(t, run.ErrorMessage)
}

func TestCloseOnPartialApp(t *testing.T) {
	t.Parallel()

	a := &App{logger: zap.NewNop()}
	require.NotPanics(t, a.Close)
}
