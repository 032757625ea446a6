// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET|POST /v1/jobs/... to launch backend jobs and watch the live registry.
//   - GET /v1/comparison and /v1/report for per-source analytics.
//   - GET /v1/history for settled runs via the HistoryRepository interface.
package api
