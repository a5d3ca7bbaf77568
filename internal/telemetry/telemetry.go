// Package telemetry unifies Prometheus metrics and OpenTelemetry tracing for the reader service.
package telemetry

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Preview lookup results.
const (
	LookupHit   = "hit"
	LookupMiss  = "miss"
	LookupError = "error"
)

// Preview store outcomes.
const (
	StoreOK       = "ok"
	StoreConflict = "conflict"
	StoreError    = "error"
	StoreSkipped  = "skipped"
)

// Preview warm-up outcomes.
const (
	WarmQueued  = "queued"
	WarmDropped = "dropped"
	WarmOK      = "ok"
	WarmEmpty   = "empty"
)

var (
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

	previewLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_cache_lookups_total",
			Help: "Total number of preview cache lookups, labeled by result.",
		},
		[]string{"result"},
	)

	previewFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_fetches_total",
			Help: "Total number of partial HTML fetches, labeled by site and outcome.",
		},
		[]string{"site", "outcome"},
	)

	previewFetchChunks = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "preview_fetch_chunks",
			Help:    "Histogram of body chunks read per partial fetch.",
			Buckets: []float64{1, 2, 3, 5, 8, 10, 15, 20},
		},
	)

	previewFetchBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_fetch_bytes_total",
			Help: "Total number of bytes kept from partial fetches, labeled by site.",
		},
		[]string{"site"},
	)

	previewStoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_cache_stores_total",
			Help: "Total number of preview cache writes, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	rateLimitDelaysSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "preview_rate_limit_delays_seconds",
			Help:    "Histogram of rate limit wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)

	previewWarmupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_warmups_total",
			Help: "Total number of background preview warm-ups, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	hackerNewsRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hacker_news_requests_total",
			Help: "Total number of Hacker News API requests, labeled by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)
)

// Handler returns the standard Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}
		ObserveHTTPRequest(r.Method, routePattern, ww.statusCode, time.Since(start))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

// SanitizeSite extracts the hostname from a URL.
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

// ObserveHTTPRequest records metrics for an HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObservePreviewLookup records the result of a preview cache lookup.
func ObservePreviewLookup(result string) {
	previewLookupsTotal.WithLabelValues(result).Inc()
}

// ObservePreviewFetch records a partial fetch. Outcome is "ok" or a fetch error kind.
func ObservePreviewFetch(rawURL, outcome string, chunks, bytesKept int) {
	site := SanitizeSite(rawURL)
	previewFetchesTotal.WithLabelValues(site, outcome).Inc()
	if chunks > 0 {
		previewFetchChunks.Observe(float64(chunks))
	}
	if bytesKept > 0 {
		previewFetchBytesTotal.WithLabelValues(site).Add(float64(bytesKept))
	}
}

// ObservePreviewStore records the outcome of a preview cache write.
func ObservePreviewStore(outcome string) {
	previewStoresTotal.WithLabelValues(outcome).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHackerNewsRequest records an upstream Hacker News API call.
func ObserveHackerNewsRequest(endpoint, outcome string) {
	hackerNewsRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
}

// ObservePreviewWarm records a background warm-up transition.
func ObservePreviewWarm(outcome string) {
	previewWarmupsTotal.WithLabelValues(outcome).Inc()
}
