// Package main is the shoecrawler entrypoint.
//
// Architecture overview:
//   - CLI: cmd builds the cobra tree. The root hook loads config (Viper, CRAWLER_* env overrides), builds the zap
//     logger and the internal/app container; `crawl <profile> [section...|all]` runs one profile, `profiles` lists them.
//   - Scheduler: internal/scheduler owns a run. URLs are admitted once by internal/frontier, bounded by the
//     internal/limiter semaphore, and handed to internal/expander. Discovered pages and goods are fed back in
//     background batches; the run ends after several consecutive idle polls.
//   - Fetch/expand: per-host pacing (x/time/rate), the colly fetcher with bounded exponential retry, optional chromedp
//     promotion for script-rendered pages, optional raw payload archive (memory/local/GCS), then the retailer profile
//     in internal/profile maps payloads to records.
//   - Persistence & fanout: records are upserted into Postgres (pgx) or memory with --dry-run. Each upsert can be
//     announced on Pub/Sub. Run history goes to the crawl_runs table through the progress hub.
//   - Observability: zap logs, Prometheus metrics, OpenTelemetry trace context on Pub/Sub messages and an optional
//     ops server (ops.addr) with /healthz, /metrics, /v1/status and /v1/runs/{run_id}.
//
// Quick checklist:
//   - Configure env vars: CRAWLER_DB_DSN, CRAWLER_CRAWLER_CONCURRENCY, CRAWLER_HTTP_RATE_PER_SECOND,
//     CRAWLER_HEADLESS_ENABLED, CRAWLER_STORAGE_ARCHIVE, CRAWLER_PUBSUB_TOPIC_NAME, CRAWLER_OPS_ADDR.
//   - Run locally: go run ./cmd/shoecrawler crawl adidas --dry-run
//   - SIGINT/SIGTERM cancel the run; the process exits non-zero.
package main
