package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/sale-shoe-crawler/internal/progress"
)

// PrometheusSink exports run and URL completion metrics.
type PrometheusSink struct {
	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	urlsCompleted *prometheus.CounterVec
	urlRecords    *prometheus.CounterVec
	urlDiscovered *prometheus.CounterVec
	urlDuration   *prometheus.HistogramVec
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shoecrawler_runs_started_total",
			Help: "Crawl runs started, by profile.",
		}, []string{"profile"}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shoecrawler_runs_completed_total",
			Help: "Crawl runs completed, by profile and result.",
		}, []string{"profile", "result"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shoecrawler_run_duration_seconds",
			Help:    "Wall time per crawl run.",
			Buckets: []float64{10, 30, 60, 300, 600, 1800, 3600, 7200},
		}, []string{"profile", "result"}),
		urlsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shoecrawler_urls_completed_total",
			Help: "URLs finished, by profile and result.",
		}, []string{"profile", "result"}),
		urlRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shoecrawler_url_records_total",
			Help: "Product records mapped from fetched URLs.",
		}, []string{"profile"}),
		urlDiscovered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shoecrawler_urls_discovered_total",
			Help: "Follow-up URLs proposed by fetched URLs, before de-duplication.",
		}, []string{"profile"}),
		urlDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shoecrawler_url_duration_seconds",
			Help:    "Fetch/expand latency per URL, retries included.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"profile", "result"}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runDuration,
		s.urlsCompleted,
		s.urlRecords,
		s.urlDiscovered,
		s.urlDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart:
			s.runsStarted.WithLabelValues(evt.Profile).Inc()
		case progress.StageRunDone:
			s.observeRun(evt, "success")
		case progress.StageRunError:
			s.observeRun(evt, "error")
		case progress.StageURLDone:
			s.observeURL(evt)
		}
	}
	return nil
}

func (s *PrometheusSink) observeRun(evt progress.Event, result string) {
	s.runsCompleted.WithLabelValues(evt.Profile, result).Inc()
	if evt.Dur > 0 {
		s.runDuration.WithLabelValues(evt.Profile, result).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) observeURL(evt progress.Event) {
	result := evt.Result()
	s.urlsCompleted.WithLabelValues(evt.Profile, result).Inc()
	if evt.Records > 0 {
		s.urlRecords.WithLabelValues(evt.Profile).Add(float64(evt.Records))
	}
	if evt.Discovered > 0 {
		s.urlDiscovered.WithLabelValues(evt.Profile).Add(float64(evt.Discovered))
	}
	if evt.Dur > 0 {
		s.urlDuration.WithLabelValues(evt.Profile, result).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
