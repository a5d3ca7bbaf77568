package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/JakeFAU/hnreader/internal/hackernews"
	"github.com/JakeFAU/hnreader/internal/preview"
	"github.com/JakeFAU/hnreader/internal/telemetry"
)

const (
	defaultRequestTimeout = 30 * time.Second
	readyTimeout          = 2 * time.Second
)

// PreviewService produces link previews.
type PreviewService interface {
	PreviewFromURL(ctx context.Context, url string) (preview.Preview, bool)
}

// StoryService reads stories and comments from Hacker News.
type StoryService interface {
	NewStories(ctx context.Context, page int) ([]hackernews.Story, error)
	Story(ctx context.Context, id int64) (hackernews.Story, error)
	StoryComments(ctx context.Context, id int64) ([]hackernews.Comment, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RequestIDGenerator mints correlation ids for requests that arrive without one.
type RequestIDGenerator interface {
	NewRequestID() string
}

// Warmer accepts story URLs whose previews should be fetched ahead of demand.
type Warmer interface {
	Offer(urls ...string) int
}

// Options tunes the router. Warmer may be nil.
type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	Warmer         Warmer
}

// Server wires HTTP handlers to the preview pipeline and the Hacker News client.
type Server struct {
	router   chi.Router
	previews PreviewService
	stories  StoryService
	ready    Pinger
	warmer   Warmer
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes. ready may be nil.
func NewServer(
	previews PreviewService,
	stories StoryService,
	ready Pinger,
	ids RequestIDGenerator,
	opts Options,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	s := &Server{
		previews: previews,
		stories:  stories,
		ready:    ready,
		warmer:   opts.Warmer,
		logger:   logger.Named("api"),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware(ids))
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(telemetry.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))
	r.Use(timeoutMiddleware(opts.RequestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/previews", s.getPreview)
		r.Route("/stories", func(r chi.Router) {
			r.Get("/", s.listStories)
			r.Get("/{id}", s.getStory)
			r.Get("/{id}/comments", s.listComments)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "preview cache unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Debug("write json response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
