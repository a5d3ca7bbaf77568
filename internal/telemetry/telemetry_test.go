package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSite(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.expected, SanitizeSite(tc.input))
		})
	}
}

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "418"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))

	require.Equal(t, http.StatusTeapot, rec.Code)
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "418"))
	require.InDelta(t, 1, after-before, 0.0001)
	require.Positive(t, testutil.CollectAndCount(httpRequestDurationSeconds))
}

func TestObservePreviewCounters(t *testing.T) {
	lookupBefore := testutil.ToFloat64(previewLookupsTotal.WithLabelValues(LookupHit))
	storeBefore := testutil.ToFloat64(previewStoresTotal.WithLabelValues(StoreConflict))
	fetchBefore := testutil.ToFloat64(previewFetchesTotal.WithLabelValues("counters.example", "ok"))

	ObservePreviewLookup(LookupHit)
	ObservePreviewStore(StoreConflict)
	ObservePreviewFetch("https://counters.example/a", "ok", 3, 512)

	require.InDelta(t, 1, testutil.ToFloat64(previewLookupsTotal.WithLabelValues(LookupHit))-lookupBefore, 0.0001)
	require.InDelta(t, 1, testutil.ToFloat64(previewStoresTotal.WithLabelValues(StoreConflict))-storeBefore, 0.0001)
	require.InDelta(t, 1,
		testutil.ToFloat64(previewFetchesTotal.WithLabelValues("counters.example", "ok"))-fetchBefore, 0.0001)
	require.InDelta(t, 512, testutil.ToFloat64(previewFetchBytesTotal.WithLabelValues("counters.example")), 0.0001)
}

func TestObservePreviewWarm(t *testing.T) {
	before := testutil.ToFloat64(previewWarmupsTotal.WithLabelValues(WarmDropped))
	ObservePreviewWarm(WarmDropped)
	require.InDelta(t, 1, testutil.ToFloat64(previewWarmupsTotal.WithLabelValues(WarmDropped))-before, 0.0001)
}

func TestInitTracerProvider(t *testing.T) {
	tp, err := InitTracerProvider(context.Background(), "hnreader-test", "0.0.0")
	require.NoError(t, err)
	require.NotNil(t, tp)
	defer func() {
		require.NoError(t, tp.Shutdown(context.Background()))
	}()

	_, span := Tracer().Start(context.Background(), "test-span")
	require.True(t, span.SpanContext().IsValid())
	span.End()
}

func FuzzSanitizeSite(f *testing.F) {
	for _, tc := range []string{"http://example.com", "https://google.com", "ftp://example.com"} {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeSite(orig) == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
