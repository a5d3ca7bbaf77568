// Package main hosts the hnreader service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, link previews, and a read-only proxy of the
//     Hacker News API (new stories, a single story, a story's direct comments).
//   - Preview pipeline: internal/preview.Service hashes the URL, consults the preview cache, and on a miss
//     waits on the per-domain rate limiter, fetches only the document head (streaming or Colly backend),
//     extracts title/description/image/domain with goquery, strips tags from the description, and stores
//     the row. Callers always get either a preview or "none"; failures are logged, never returned.
//   - Cache: Postgres (pgx pool), SQLite (modernc), or in-memory, optionally fronted by an LRU tier. Rows are
//     immutable and keyed by a unique url_hash, which also settles concurrent misses for the same URL.
//   - Configuration & plumbing: Viper populates config from env/files; zap provides structured logging;
//     Prometheus metrics are exported on /metrics; OpenTelemetry spans wrap the pipeline when enabled.
//
// Quick checklist:
//   - Configure env vars: HNREADER_SERVER_PORT or PORT, HNREADER_CACHE_BACKEND, HNREADER_DATABASE_DSN or
//     HNREADER_DATABASE_PATH, HNREADER_PREVIEW_FETCHER, HNREADER_RATE_LIMIT_ENABLED.
//   - Run locally: go run ./cmd/hnreader --config config.yaml (or rely solely on env overrides).
//   - The process reacts to SIGINT/SIGTERM by draining in-flight requests and closing the cache.
package main
