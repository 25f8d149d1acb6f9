// Package api hosts the HTTP server, middleware, and JSON handlers for the
// crawler service. Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/crawls to start a scan, GET /v1/crawls/status to poll it.
//   - GET /v1/documents... to search, list, and show catalog records.
//   - POST /v1/documents/{id}/lookup for an on-demand single-ID check.
package api
