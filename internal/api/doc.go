// Package api hosts the operator HTTP server that runs next to a crawl.
// Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/status for the live scheduler snapshot.
//   - GET /v1/runs/{run_id} for persisted run history.
//   - GET /v1/items?url= for a stored record.
package api
