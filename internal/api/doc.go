// Package api hosts the HTTP server, middleware, and REST handlers for
// operator access. Notable routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /api/articles for paginated article reads.
//   - POST /api/fetch-rss and /api/fetch-content to trigger pipeline runs.
package api
