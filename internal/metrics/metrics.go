// Package metrics exposes Prometheus collectors for the crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	frontierURLs                  *prometheus.GaugeVec
	limiterSlotsInUse             *prometheus.GaugeVec
	fetchAttemptsTotal            *prometheus.CounterVec
	fetchRetriesTotal             *prometheus.CounterVec
	crawlerBytesTotal             *prometheus.CounterVec
	headlessPromotionsTotal       *prometheus.CounterVec
	recordMappingErrorsTotal      *prometheus.CounterVec
	upsertsTotal                  *prometheus.CounterVec
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec
	crawlerRateLimitDelaysSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		frontierURLs = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "crawler_frontier_urls",
				Help: "URLs currently held by the frontier, labeled by profile and state.",
			},
			[]string{"profile", "state"},
		)

		limiterSlotsInUse = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "crawler_limiter_slots_in_use",
				Help: "Concurrency slots held by in-flight URLs, labeled by profile.",
			},
			[]string{"profile"},
		)

		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetch_attempts_total",
				Help: "Total fetch attempts, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		fetchRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetch_retries_total",
				Help: "Total fetch retries scheduled after a retryable failure, labeled by site.",
			},
			[]string{"site"},
		)

		crawlerBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		headlessPromotionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_headless_promotions_total",
				Help: "Headless promotions, labeled by site and result.",
			},
			[]string{"site", "result"},
		)

		recordMappingErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_record_mapping_errors_total",
				Help: "Products skipped because their payload could not be mapped, labeled by profile.",
			},
			[]string{"profile"},
		)

		upsertsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_upserts_total",
				Help: "Record upserts, labeled by profile and result.",
			},
			[]string{"profile", "result"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		crawlerRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetFrontier publishes the frontier set sizes for a profile.
func SetFrontier(profile string, pending, inFlight, completed int) {
	frontierURLs.WithLabelValues(profile, "pending").Set(float64(pending))
	frontierURLs.WithLabelValues(profile, "in_flight").Set(float64(inFlight))
	frontierURLs.WithLabelValues(profile, "completed").Set(float64(completed))
}

// SetSlotsInUse publishes how many limiter slots are held.
func SetSlotsInUse(profile string, inUse int) {
	limiterSlotsInUse.WithLabelValues(profile).Set(float64(inUse))
}

// ObserveFetch records one fetch attempt and the bytes it returned.
func ObserveFetch(site string, outcome string, bytesFetched int) {
	sanitizedSite := SanitizeSite(site)
	fetchAttemptsTotal.WithLabelValues(sanitizedSite, outcome).Inc()
	if bytesFetched > 0 {
		crawlerBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveRetry increments the retry counter for the URL's host.
func ObserveRetry(site string) {
	fetchRetriesTotal.WithLabelValues(SanitizeSite(site)).Inc()
}

// ObserveHeadlessPromotion records whether a headless re-fetch succeeded.
func ObserveHeadlessPromotion(site string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	headlessPromotionsTotal.WithLabelValues(SanitizeSite(site), result).Inc()
}

// ObserveRecordMappingError counts a product skipped during mapping.
func ObserveRecordMappingError(profile string) {
	recordMappingErrorsTotal.WithLabelValues(profile).Inc()
}

// ObserveUpsert counts a persisted (or failed) record.
func ObserveUpsert(profile string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	upsertsTotal.WithLabelValues(profile, result).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	crawlerRateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
