// Package app builds the long-lived services a crawl needs and runs one
// profile crawl on top of them.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	gcsstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/sale-shoe-crawler/internal/api"
	"github.com/JakeFAU/sale-shoe-crawler/internal/config"
	"github.com/JakeFAU/sale-shoe-crawler/internal/crawler"
	"github.com/JakeFAU/sale-shoe-crawler/internal/expander"
	collyfetcher "github.com/JakeFAU/sale-shoe-crawler/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/sale-shoe-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/sale-shoe-crawler/internal/frontier"
	"github.com/JakeFAU/sale-shoe-crawler/internal/hash/sha256"
	"github.com/JakeFAU/sale-shoe-crawler/internal/headless/detector"
	"github.com/JakeFAU/sale-shoe-crawler/internal/id/uuid"
	"github.com/JakeFAU/sale-shoe-crawler/internal/limiter"
	"github.com/JakeFAU/sale-shoe-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/sale-shoe-crawler/internal/profile"
	"github.com/JakeFAU/sale-shoe-crawler/internal/progress"
	"github.com/JakeFAU/sale-shoe-crawler/internal/progress/sinks"
	memorypublisher "github.com/JakeFAU/sale-shoe-crawler/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/sale-shoe-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/sale-shoe-crawler/internal/scheduler"
	"github.com/JakeFAU/sale-shoe-crawler/internal/storage/gcs"
	"github.com/JakeFAU/sale-shoe-crawler/internal/storage/local"
	"github.com/JakeFAU/sale-shoe-crawler/internal/storage/memory"
	"github.com/JakeFAU/sale-shoe-crawler/internal/storage/notify"
	"github.com/JakeFAU/sale-shoe-crawler/internal/storage/postgres"
	"github.com/JakeFAU/sale-shoe-crawler/internal/store"
	"github.com/JakeFAU/sale-shoe-crawler/internal/telemetry"
)

// ServiceName tags traces and the tracer.
const ServiceName = "shoecrawler"

const closeTimeout = 10 * time.Second

// ErrDSNRequired is returned when persistence is requested without db.dsn.
var ErrDSNRequired = errors.New("db.dsn is required unless --dry-run is set")

// Options adjust how services are built.
type Options struct {
	// DryRun keeps records, run history and notifications in memory.
	DryRun bool
	// Registerer receives the progress collectors. Defaults to the global
	// Prometheus registry.
	Registerer prometheus.Registerer
}

// App holds the services shared by every crawl in the process.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	items         crawler.ItemStore
	runs          store.RunRepository
	archive       crawler.BlobStore
	archivePrefix string
	publisher     crawler.Publisher
	headless      *headlessfetcher.Fetcher
	detector      crawler.HeadlessDetector
	hasher        crawler.Hasher
	ids           crawler.IDGenerator
	promSink      *sinks.PrometheusSink

	gcsClient    *gcsstorage.Client
	pubsubClient *pubsub.Client
	pubsubPub    *pubsubpublisher.Publisher
}

// New builds the shared services. Startup failures are returned before any
// crawl begins; whatever was opened is closed again.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:      cfg,
		logger:   logger,
		detector: detector.NewHeuristic(cfg.Headless.PromotionThresh),
		hasher:   sha256.New(),
		ids:      uuid.New(),
	}
	if err := a.init(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context, opts Options) error {
	if err := a.initStores(ctx, opts.DryRun); err != nil {
		return err
	}
	if err := a.initArchive(ctx); err != nil {
		return err
	}
	if err := a.initPublisher(ctx, opts.DryRun); err != nil {
		return err
	}
	a.initHeadless()

	promSink, err := sinks.NewPrometheusSink(opts.Registerer)
	if err != nil {
		return fmt.Errorf("init progress metrics: %w", err)
	}
	a.promSink = promSink
	return nil
}

func (a *App) initStores(ctx context.Context, dryRun bool) error {
	if dryRun {
		a.logger.Info("dry run: records and run history stay in memory")
		a.items = memory.NewItemStore()
		a.runs = memory.NewRunStore()
		return nil
	}
	if a.cfg.DB.DSN == "" {
		return ErrDSNRequired
	}
	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:             a.cfg.DB.DSN,
		MaxConns:        a.cfg.DB.MaxConns,
		MinConns:        a.cfg.DB.MinConns,
		MaxConnLifetime: a.cfg.DB.MaxConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	items, err := postgres.NewItemStore(pool, a.cfg.DB.Table)
	if err != nil {
		pool.Close()
		return fmt.Errorf("init item store: %w", err)
	}
	a.items = items
	runs, err := postgres.NewRunStore(pool, "")
	if err != nil {
		return fmt.Errorf("init run store: %w", err)
	}
	a.runs = runs
	if a.cfg.DB.AutoMigrate {
		if err := items.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure item schema: %w", err)
		}
		if err := runs.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure run schema: %w", err)
		}
	}
	return nil
}

func (a *App) initArchive(ctx context.Context) error {
	switch a.cfg.Storage.Archive {
	case "", config.ArchiveNone:
		return nil
	case config.ArchiveMemory:
		a.archive = memory.NewBlobStore()
		a.archivePrefix = a.cfg.Storage.Prefix
	case config.ArchiveLocal:
		blob, err := local.New(local.Config{BaseDir: a.cfg.Storage.LocalDir})
		if err != nil {
			return fmt.Errorf("init local archive: %w", err)
		}
		a.archive = blob
		a.archivePrefix = a.cfg.Storage.Prefix
	case config.ArchiveGCS:
		client, err := gcsstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("create gcs client: %w", err)
		}
		a.gcsClient = client
		blob, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Storage.GCSBucket, Prefix: a.cfg.Storage.Prefix})
		if err != nil {
			return fmt.Errorf("init gcs archive: %w", err)
		}
		a.archive = blob
	default:
		return fmt.Errorf("unknown archive kind %q", a.cfg.Storage.Archive)
	}
	a.logger.Info("archiving raw payloads", zap.String("archive", a.cfg.Storage.Archive))
	return nil
}

func (a *App) initPublisher(ctx context.Context, dryRun bool) error {
	if a.cfg.PubSub.TopicName == "" {
		return nil
	}
	if dryRun {
		a.publisher = memorypublisher.New(memorypublisher.WithLogger(a.logger.Named("publisher")))
		return nil
	}
	if a.cfg.PubSub.ProjectID == "" {
		return errors.New("pubsub.project_id is required when pubsub.topic_name is set")
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("create pubsub client: %w", err)
	}
	a.pubsubClient = client
	a.pubsubPub = pubsubpublisher.New(client)
	a.publisher = a.pubsubPub
	return nil
}

// initHeadless starts Chrome when enabled. A failure only disables promotion.
func (a *App) initHeadless() {
	if !a.cfg.Headless.Enabled {
		return
	}
	fetcher, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
		MaxParallel:       a.cfg.Headless.MaxParallel,
		UserAgent:         a.cfg.HTTP.UserAgent,
		AcceptLanguage:    a.cfg.HTTP.AcceptLanguage,
		NavigationTimeout: a.cfg.NavigationTimeout(),
		ReadySelector:     a.cfg.Headless.ReadySelector,
		ExecPath:          a.cfg.Headless.ExecPath,
	})
	if err != nil {
		a.logger.Warn("headless fetcher init failed", zap.Error(err))
		return
	}
	a.headless = fetcher
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Items returns the record store.
func (a *App) Items() crawler.ItemStore {
	return a.items
}

// Runs returns the run history repository.
func (a *App) Runs() store.RunRepository {
	return a.runs
}

// Crawl runs the named profile over sections (all defaults when empty or
// "all") until the crawl is quiescent or ctx is cancelled.
func (a *App) Crawl(ctx context.Context, name string, sections []string) (scheduler.Summary, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	profileCfg := a.cfg.Profile(name)
	prof, err := profile.New(name, profile.Options{ReferralPrefix: profileCfg.ReferralPrefix})
	if err != nil {
		return scheduler.Summary{}, err
	}
	runID, err := a.ids.NewRunID()
	if err != nil {
		return scheduler.Summary{}, fmt.Errorf("generate run id: %w", err)
	}
	logger := a.logger.With(zap.String("profile", name), zap.Stringer("run_id", runID))

	tp, err := telemetry.InitTracerProvider(ctx, ServiceName, name)
	if err != nil {
		return scheduler.Summary{}, fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()
	ctx, span := tp.Tracer(ServiceName).Start(ctx, "crawl",
		trace.WithAttributes(
			attribute.String("crawler.profile", name),
			attribute.String("crawler.run_id", runID.String()),
		),
	)
	defer span.End()

	exp, err := a.newExpander(prof, profileCfg, logger)
	if err != nil {
		return scheduler.Summary{}, err
	}
	lim, err := limiter.New(profileCfg.Concurrency)
	if err != nil {
		return scheduler.Summary{}, fmt.Errorf("init limiter: %w", err)
	}

	items := notify.New(a.items, a.publisher, a.cfg.PubSub.TopicName, runID.String(), logger)
	hub := progress.NewHub(progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("progress")),
		a.promSink,
		sinks.NewStoreSink(a.runs, logger),
	)
	sched := scheduler.New(scheduler.Config{
		RunID:           runID,
		Profile:         name,
		Brand:           prof.Brand(),
		PollInterval:    a.cfg.Crawler.PollInterval,
		StartupGrace:    a.cfg.Crawler.StartupGrace,
		QuiescentChecks: a.cfg.Crawler.QuiescentChecks,
		ProgressEvery:   a.cfg.Crawler.ProgressEvery,
		SummaryInterval: a.cfg.Crawler.SummaryInterval,
	}, frontier.New(), lim, exp, items, hub, nil, a.logger)

	stopOps := a.startOps(ctx, api.Deps{Status: sched, Runs: a.runs, Items: items})
	summary, runErr := sched.Run(ctx, prof.Seeds(sections))
	stopOps()

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	if err := hub.Close(closeCtx); err != nil {
		logger.Warn("progress hub close failed", zap.Error(err))
	}

	span.SetAttributes(
		attribute.Int("crawler.completed", summary.Completed),
		attribute.Int("crawler.records", summary.Records),
	)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	}
	return summary, runErr
}

func (a *App) newExpander(prof profile.Profile, profileCfg config.ProfileConfig, logger *zap.Logger) (*expander.Expander, error) {
	fetcher, err := collyfetcher.New(collyfetcher.Config{
		UserAgent:       a.cfg.HTTP.UserAgent,
		AcceptLanguage:  a.cfg.HTTP.AcceptLanguage,
		Timeout:         a.cfg.RequestTimeout(),
		MaxConnsPerHost: a.cfg.HTTP.MaxConnsPerHost,
		Proxies:         profileCfg.Proxies,
	})
	if err != nil {
		return nil, fmt.Errorf("init fetcher: %w", err)
	}
	backoffInitial, backoffMax := a.cfg.Backoff()
	deps := expander.Deps{
		Profile: prof,
		Fetcher: fetcher,
		Retry:   crawler.NewExponentialRetryPolicy(a.cfg.HTTP.MaxAttempts, backoffInitial, backoffMax),
		Pacer: ratelimit.New(ratelimit.Config{
			DefaultRPS:   a.cfg.HTTP.RatePerSecond,
			DefaultBurst: a.cfg.HTTP.Burst,
		}),
		Detector: a.detector,
		Archive:  a.archive,
		Hasher:   a.hasher,
	}
	if a.headless != nil {
		deps.Headless = a.headless
	}
	exp, err := expander.New(deps, expander.Config{ArchivePrefix: a.archivePrefix}, logger)
	if err != nil {
		return nil, fmt.Errorf("init expander: %w", err)
	}
	return exp, nil
}

// startOps serves the ops routes for the duration of a run. The returned func
// stops the server and waits for it.
func (a *App) startOps(ctx context.Context, deps api.Deps) func() {
	if a.cfg.Ops.Addr == "" {
		return func() {}
	}
	opsCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	server := api.NewServer(deps, a.logger)
	go func() {
		defer close(done)
		if err := server.ListenAndServe(opsCtx, a.cfg.Ops.Addr); err != nil {
			a.logger.Warn("ops server stopped", zap.Error(err))
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// Close releases every service. It is safe to call on a partly built App.
func (a *App) Close() {
	if a.headless != nil {
		a.headless.Close()
	}
	if a.pubsubPub != nil {
		a.pubsubPub.Close()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("close pubsub client", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("close gcs client", zap.Error(err))
		}
	}
	if a.items != nil {
		a.items.Close()
	}
}
