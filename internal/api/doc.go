// Package api hosts the HTTP server, middleware, and REST handlers. Notable routes:
//   - GET /healthz and /readyz for liveness and readiness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /api/v1/previews?url= for link previews (200, 204 when none, 400 without url).
//   - GET /api/v1/stories?page=, /api/v1/stories/{id} and /api/v1/stories/{id}/comments,
//     proxied from the Hacker News API.
package api
