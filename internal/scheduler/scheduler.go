// Package scheduler drives a crawl run: it admits URLs into the frontier,
// dispatches them through the limiter to the expander, feeds discovered URLs
// back in and decides when the run is finished.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/sale-shoe-crawler/internal/crawler"
	"github.com/JakeFAU/sale-shoe-crawler/internal/frontier"
	"github.com/JakeFAU/sale-shoe-crawler/internal/limiter"
	"github.com/JakeFAU/sale-shoe-crawler/internal/metrics"
	"github.com/JakeFAU/sale-shoe-crawler/internal/progress"
)

// ErrAlreadyRan is returned when Run is called twice on one Scheduler.
var ErrAlreadyRan = errors.New("scheduler already ran")

// Config controls polling and progress reporting.
type Config struct {
	RunID           uuid.UUID
	Profile         string
	Brand           string
	PollInterval    time.Duration
	StartupGrace    time.Duration
	QuiescentChecks int
	ProgressEvery   int
	SummaryInterval time.Duration
}

const (
	defaultPollInterval    = time.Second
	defaultStartupGrace    = time.Second
	defaultQuiescentChecks = 2
	defaultProgressEvery   = 100
	defaultSummaryInterval = 30 * time.Second
)

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.StartupGrace <= 0 {
		c.StartupGrace = defaultStartupGrace
	}
	if c.QuiescentChecks <= 0 {
		c.QuiescentChecks = defaultQuiescentChecks
	}
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = defaultProgressEvery
	}
	if c.SummaryInterval <= 0 {
		c.SummaryInterval = defaultSummaryInterval
	}
	if c.Brand == "" {
		c.Brand = c.Profile
	}
	if c.RunID == uuid.Nil {
		c.RunID = uuid.New()
	}
	return c
}

// Summary describes a finished (or interrupted) run.
type Summary struct {
	RunID           uuid.UUID     `json:"run_id"`
	Profile         string        `json:"profile"`
	Completed       int           `json:"completed"`
	Succeeded       int           `json:"succeeded"`
	Failed          int           `json:"failed"`
	Records         int           `json:"records"`
	PersistFailures int           `json:"persist_failures"`
	Duration        time.Duration `json:"duration"`
}

// Snapshot is a live view of a run.
type Snapshot struct {
	RunID       uuid.UUID       `json:"run_id"`
	Profile     string          `json:"profile"`
	Running     bool            `json:"running"`
	StartedAt   time.Time       `json:"started_at"`
	Frontier    frontier.Counts `json:"frontier"`
	Outstanding int64           `json:"outstanding"`
	SlotsInUse  int             `json:"slots_in_use"`
	Capacity    int             `json:"capacity"`
	Records     int64           `json:"records"`
}

// Scheduler owns one crawl run.
type Scheduler struct {
	cfg      Config
	frontier *frontier.Frontier
	limiter  *limiter.Limiter
	expander crawler.Expander
	store    crawler.ItemStore
	emitter  progress.Emitter
	clock    crawler.Clock
	logger   *zap.Logger

	wg              sync.WaitGroup
	outstanding     atomic.Int64
	records         atomic.Int64
	persistFailures atomic.Int64
	finished        atomic.Int64
	started         atomic.Bool
	running         atomic.Bool
	startedAt       atomic.Int64
}

// New wires a Scheduler. The frontier and limiter are owned by the run;
// emitter and clock may be nil.
func New(
	cfg Config,
	f *frontier.Frontier,
	lim *limiter.Limiter,
	expander crawler.Expander,
	store crawler.ItemStore,
	emitter progress.Emitter,
	clock crawler.Clock,
	logger *zap.Logger,
) *Scheduler {
	metrics.Init()
	if emitter == nil {
		emitter = progress.Discard{}
	}
	if clock == nil {
		clock = utcClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	logger = logger.Named("scheduler").With(
		zap.String("profile", cfg.Profile),
		zap.Stringer("run_id", cfg.RunID),
	)
	return &Scheduler{
		cfg:      cfg,
		frontier: f,
		limiter:  lim,
		expander: expander,
		store:    store,
		emitter:  emitter,
		clock:    clock,
		logger:   logger,
	}
}

// Enqueue admits urls in the background. Only URLs never seen before are
// dispatched; each waits for a limiter slot before it starts.
func (s *Scheduler) Enqueue(ctx context.Context, urls []string) {
	if len(urls) == 0 {
		return
	}
	batch := append([]string(nil), urls...)
	s.spawn(func() { s.admit(ctx, batch) })
}

// spawn counts the task before the goroutine exists so the quiescence check
// never sees a gap between a parent finishing and its children starting.
func (s *Scheduler) spawn(task func()) {
	s.outstanding.Add(1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.outstanding.Add(-1)
		task()
	}()
}

func (s *Scheduler) admit(ctx context.Context, urls []string) {
	for _, url := range urls {
		if !s.frontier.Discover(url) {
			continue
		}
		slot, err := s.limiter.Acquire(ctx)
		if err != nil {
			s.logger.Debug("slot acquisition abandoned", zap.String("url", crawler.StripQuery(url)), zap.Error(err))
			return
		}
		if err := s.frontier.Begin(url); err != nil {
			slot.Release()
			s.logger.Error("begin url", zap.String("url", crawler.StripQuery(url)), zap.Error(err))
			continue
		}
		metrics.SetSlotsInUse(s.cfg.Profile, s.limiter.InUse())
		s.spawn(func() { s.dispatch(ctx, url, slot) })
	}
}

func (s *Scheduler) dispatch(ctx context.Context, url string, slot *limiter.Slot) {
	defer func() {
		slot.Release()
		metrics.SetSlotsInUse(s.cfg.Profile, s.limiter.InUse())
	}()

	start := s.clock.Now()
	expansion, err := s.expand(ctx, url)
	success := err == nil
	records := 0
	if err != nil {
		s.logger.Warn("url failed", zap.String("url", crawler.StripQuery(url)), zap.Error(err))
	} else {
		records = s.persist(ctx, expansion.Records)
		s.Enqueue(ctx, expansion.Pages)
		s.Enqueue(ctx, expansion.Goods)
	}

	if err := s.frontier.Finish(url, success); err != nil {
		s.logger.Error("finish url", zap.String("url", crawler.StripQuery(url)), zap.Error(err))
	}

	evt := progress.Event{
		RunID:      progress.UUIDToBytes(s.cfg.RunID),
		TS:         s.clock.Now(),
		Stage:      progress.StageURLDone,
		Profile:    s.cfg.Profile,
		URL:        url,
		Success:    success,
		Records:    records,
		Discovered: expansion.Discovered(),
		Dur:        max(s.clock.Now().Sub(start), 0),
	}
	if err != nil {
		evt.Note = err.Error()
	}
	s.emitter.Emit(evt)

	if n := s.finished.Add(1); n%int64(s.cfg.ProgressEvery) == 0 {
		counts := s.frontier.Counts()
		s.logger.Info("crawl progress",
			zap.Int("completed", counts.Completed),
			zap.Int64("outstanding", s.outstanding.Load()),
			zap.Int("pending", counts.Pending),
		)
	}
}

// expand turns a panic inside the expander into an ordinary failure.
func (s *Scheduler) expand(ctx context.Context, url string) (exp crawler.Expansion, err error) {
	defer func() {
		if r := recover(); r != nil {
			exp = crawler.Expansion{}
			err = fmt.Errorf("expand panicked: %v", r)
		}
	}()
	return s.expander.Expand(ctx, url)
}

func (s *Scheduler) persist(ctx context.Context, records []crawler.Record) int {
	if s.store == nil {
		return 0
	}
	stored := 0
	now := s.clock.Now()
	for _, rec := range records {
		if rec.Created.IsZero() {
			rec.Created = now
		}
		rec.LastUpdate = now
		err := s.store.Upsert(ctx, rec)
		metrics.ObserveUpsert(s.cfg.Profile, err)
		if err != nil {
			s.persistFailures.Add(1)
			s.logger.Warn("upsert failed", zap.String("url", crawler.StripQuery(rec.URL)), zap.Error(err))
			continue
		}
		stored++
	}
	s.records.Add(int64(stored))
	return stored
}

// Run seeds the frontier and blocks until the crawl is quiescent or ctx is
// done. Collaborators are left open for the caller to close.
func (s *Scheduler) Run(ctx context.Context, seeds []string) (Summary, error) {
	if !s.started.CompareAndSwap(false, true) {
		return Summary{}, ErrAlreadyRan
	}
	start := s.clock.Now()
	s.startedAt.Store(start.UnixNano())
	s.running.Store(true)
	defer s.running.Store(false)

	s.logger.Info("crawl started", zap.Int("seeds", len(seeds)))
	s.emitter.Emit(s.runEvent(progress.StageRunStart, start))

	s.Enqueue(ctx, seeds)

	if err := s.waitIdle(ctx); err != nil {
		s.wg.Wait()
		summary := s.summary(start)
		evt := s.runEvent(progress.StageRunError, start)
		evt.Note = err.Error()
		s.emitter.Emit(evt)
		s.logger.Warn("crawl interrupted",
			zap.Int("completed", summary.Completed),
			zap.Int("records", summary.Records),
			zap.Error(err),
		)
		return summary, err
	}

	s.wg.Wait()
	summary := s.summary(start)
	s.emitter.Emit(s.runEvent(progress.StageRunDone, start))
	s.logger.Info(fmt.Sprintf("%s scraped: %d items", s.cfg.Brand, summary.Records),
		zap.Int("completed", summary.Completed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("persist_failures", summary.PersistFailures),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

func (s *Scheduler) waitIdle(ctx context.Context) error {
	grace := time.NewTimer(s.cfg.StartupGrace)
	select {
	case <-ctx.Done():
		grace.Stop()
		return fmt.Errorf("crawl interrupted: %w", ctx.Err())
	case <-grace.C:
	}

	poll := time.NewTicker(s.cfg.PollInterval)
	defer poll.Stop()
	heartbeat := time.NewTicker(s.cfg.SummaryInterval)
	defer heartbeat.Stop()

	stable := 0
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("crawl interrupted: %w", ctx.Err())
		case <-heartbeat.C:
			s.heartbeat()
		case <-poll.C:
			if !s.idle() {
				stable = 0
				continue
			}
			stable++
			if stable >= s.cfg.QuiescentChecks {
				return nil
			}
		}
	}
}

// idle holds when nothing is in flight, no task is still running and no
// admitted URL waits for a slot.
func (s *Scheduler) idle() bool {
	return s.frontier.IsQuiescent() &&
		s.outstanding.Load() == 0 &&
		s.frontier.Counts().Pending == 0
}

func (s *Scheduler) heartbeat() {
	counts := s.frontier.Counts()
	metrics.SetFrontier(s.cfg.Profile, counts.Pending, counts.InFlight, counts.Completed)
	metrics.SetSlotsInUse(s.cfg.Profile, s.limiter.InUse())
	s.logger.Info("crawl heartbeat",
		zap.Int("completed", counts.Completed),
		zap.Int("in_flight", counts.InFlight),
		zap.Int("pending", counts.Pending),
		zap.Int64("outstanding", s.outstanding.Load()),
		zap.Int64("records", s.records.Load()),
	)
	startedAt := time.Unix(0, s.startedAt.Load())
	s.emitter.Emit(s.runEvent(progress.StageRunHB, startedAt))
}

func (s *Scheduler) runEvent(stage progress.Stage, start time.Time) progress.Event {
	now := s.clock.Now()
	counts := s.frontier.Counts()
	return progress.Event{
		RunID:     progress.UUIDToBytes(s.cfg.RunID),
		TS:        now,
		Stage:     stage,
		Profile:   s.cfg.Profile,
		Records:   int(s.records.Load()),
		Completed: counts.Completed,
		Failed:    counts.Failed,
		InFlight:  counts.InFlight,
		Pending:   counts.Pending,
		Dur:       max(now.Sub(start), 0),
	}
}

func (s *Scheduler) summary(start time.Time) Summary {
	counts := s.frontier.Counts()
	metrics.SetFrontier(s.cfg.Profile, counts.Pending, counts.InFlight, counts.Completed)
	return Summary{
		RunID:           s.cfg.RunID,
		Profile:         s.cfg.Profile,
		Completed:       counts.Completed,
		Succeeded:       counts.Succeeded,
		Failed:          counts.Failed,
		Records:         int(s.records.Load()),
		PersistFailures: int(s.persistFailures.Load()),
		Duration:        max(s.clock.Now().Sub(start), 0),
	}
}

// Snapshot reports live counts for status endpoints.
func (s *Scheduler) Snapshot() Snapshot {
	var startedAt time.Time
	if ns := s.startedAt.Load(); ns != 0 {
		startedAt = time.Unix(0, ns).UTC()
	}
	return Snapshot{
		RunID:       s.cfg.RunID,
		Profile:     s.cfg.Profile,
		Running:     s.running.Load(),
		StartedAt:   startedAt,
		Frontier:    s.frontier.Counts(),
		Outstanding: s.outstanding.Load(),
		SlotsInUse:  s.limiter.InUse(),
		Capacity:    s.limiter.Capacity(),
		Records:     s.records.Load(),
	}
}

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }
