// Package server is the composition root: it builds the preview pipeline, the Hacker News
// client, and the HTTP server from configuration.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/JakeFAU/hnreader/internal/api"
	"github.com/JakeFAU/hnreader/internal/clock/system"
	"github.com/JakeFAU/hnreader/internal/config"
	"github.com/JakeFAU/hnreader/internal/dispatcher"
	"github.com/JakeFAU/hnreader/internal/extract"
	collyfetcher "github.com/JakeFAU/hnreader/internal/fetcher/colly"
	streamfetcher "github.com/JakeFAU/hnreader/internal/fetcher/stream"
	"github.com/JakeFAU/hnreader/internal/hackernews"
	"github.com/JakeFAU/hnreader/internal/hash/sha256"
	"github.com/JakeFAU/hnreader/internal/id/uuid"
	"github.com/JakeFAU/hnreader/internal/logging"
	"github.com/JakeFAU/hnreader/internal/policy/blocklist"
	"github.com/JakeFAU/hnreader/internal/policy/ratelimit"
	"github.com/JakeFAU/hnreader/internal/preview"
	queuememory "github.com/JakeFAU/hnreader/internal/queue/memory"
	"github.com/JakeFAU/hnreader/internal/storage/lru"
	memorystore "github.com/JakeFAU/hnreader/internal/storage/memory"
	pgstore "github.com/JakeFAU/hnreader/internal/storage/postgres"
	sqlitestore "github.com/JakeFAU/hnreader/internal/storage/sqlite"
	"github.com/JakeFAU/hnreader/internal/telemetry"
	"github.com/JakeFAU/hnreader/internal/worker"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

// App contains the application's dependencies.
type App struct {
	cfg            config.Config
	logger         *zap.Logger
	apiServer      *api.Server
	previews       *preview.Service
	stories        *hackernews.Client
	dispatch       *dispatcher.Dispatcher
	stopWarm       context.CancelFunc
	warmDone       chan struct{}
	closers        []func(context.Context) error
	tracerShutdown func(context.Context) error
}

// readiness is satisfied by every cache backend.
type readiness interface {
	preview.Cache
	Ping(ctx context.Context) error
}

// Build creates the application's dependencies. A nil logger builds one from cfg.Logging.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		var err error
		logger, err = logging.New(cfg.Logging.Development, cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("logger init failed: %w", err)
		}
		zap.ReplaceGlobals(logger)
	}
	logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.String("fetcher", cfg.Preview.Fetcher),
	)

	app := &App{cfg: cfg, logger: logger}

	if cfg.Telemetry.TracingEnabled {
		tp, err := telemetry.InitTracerProvider(ctx, cfg.Telemetry.ServiceName, Version)
		if err != nil {
			return nil, fmt.Errorf("tracer init failed: %w", err)
		}
		app.tracerShutdown = tp.Shutdown
	}

	ids := uuid.New()
	backend, err := app.setupCache(ctx, ids)
	if err != nil {
		app.closeAll(ctx)
		return nil, err
	}
	cache, err := app.wrapLRU(backend)
	if err != nil {
		app.closeAll(ctx)
		return nil, err
	}

	ext := extract.New()
	app.previews, err = preview.NewService(
		sha256.New(),
		cache,
		app.setupFetcher(),
		ext,
		ext,
		app.setupLimiter(),
		logger,
	)
	if err != nil {
		app.closeAll(ctx)
		return nil, fmt.Errorf("preview service init failed: %w", err)
	}

	app.stories = hackernews.New(hackernews.Config{
		BaseURL:     cfg.HackerNews.BaseURL,
		PageSize:    cfg.HackerNews.PageSize,
		Concurrency: cfg.HackerNews.Concurrency,
		Timeout:     cfg.HackerNewsTimeout(),
		UserAgent:   cfg.HTTP.UserAgent,
	}, nil, logger)

	opts := api.Options{AllowedOrigins: cfg.Server.AllowedOrigins}
	if app.dispatch = app.setupWarmup(); app.dispatch != nil {
		opts.Warmer = app.dispatch
	}
	app.apiServer = api.NewServer(app.previews, app.stories, backend, ids, opts, logger)
	return app, nil
}

func (a *App) setupCache(ctx context.Context, ids *uuid.Generator) (readiness, error) {
	clock := system.New()
	switch a.cfg.Cache.Backend {
	case config.CachePostgres:
		store, err := pgstore.NewPreviewStore(ctx, pgstore.Config{
			DSN:             a.cfg.Database.DSN,
			Table:           a.cfg.Database.Table,
			MaxConns:        a.cfg.Database.MaxConns,
			MinConns:        a.cfg.Database.MinConns,
			MaxConnLifetime: a.cfg.MaxConnLifetime(),
		}, ids, clock)
		if err != nil {
			return nil, fmt.Errorf("postgres preview store init failed: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error {
			store.Close()
			return nil
		})
		if a.cfg.Database.Migrate {
			if err := store.Migrate(ctx); err != nil {
				return nil, fmt.Errorf("postgres migrate failed: %w", err)
			}
		}
		a.logger.Info("using postgres preview cache", zap.String("table", a.cfg.Database.Table))
		return store, nil
	case config.CacheSQLite:
		store, err := sqlitestore.Open(ctx, a.cfg.Database.Path, ids, clock)
		if err != nil {
			return nil, fmt.Errorf("sqlite preview store init failed: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return store.Close() })
		a.logger.Info("using sqlite preview cache", zap.String("path", a.cfg.Database.Path))
		return store, nil
	default:
		a.logger.Info("using in-memory preview cache")
		return memorystore.NewPreviewStore(ids, clock), nil
	}
}

func (a *App) wrapLRU(backend preview.Cache) (preview.Cache, error) {
	if a.cfg.Cache.LRUSize == 0 {
		return backend, nil
	}
	cache, err := lru.New(backend, a.cfg.Cache.LRUSize)
	if err != nil {
		return nil, fmt.Errorf("lru cache init failed: %w", err)
	}
	a.logger.Debug("lru read-through tier enabled", zap.Int("size", a.cfg.Cache.LRUSize))
	return cache, nil
}

func (a *App) setupFetcher() preview.Fetcher {
	if a.cfg.Preview.Fetcher == config.FetcherColly {
		a.logger.Info("using colly preview fetcher", zap.String("user_agent", a.cfg.HTTP.UserAgent))
		return collyfetcher.New(collyfetcher.Config{
			UserAgent:     a.cfg.HTTP.UserAgent,
			RespectRobots: a.cfg.Preview.RespectRobots,
			Timeout:       a.cfg.FetchTimeout(),
			ChunkSize:     a.cfg.Preview.ChunkSize,
			MaxChunks:     a.cfg.Preview.MaxChunks,
		}, nil, a.logger)
	}
	a.logger.Info("using streaming preview fetcher",
		zap.String("user_agent", a.cfg.HTTP.UserAgent),
		zap.Bool("block_private", a.cfg.HTTP.BlockPrivate),
	)
	return streamfetcher.New(streamfetcher.Config{
		UserAgent:    a.cfg.HTTP.UserAgent,
		Timeout:      a.cfg.FetchTimeout(),
		ChunkSize:    a.cfg.Preview.ChunkSize,
		MaxChunks:    a.cfg.Preview.MaxChunks,
		BlockPrivate: a.cfg.HTTP.BlockPrivate,
	}, nil, a.logger)
}

func (a *App) setupLimiter() preview.Limiter {
	var limiter preview.Limiter
	if a.cfg.RateLimit.Enabled {
		limiter = a.setupRateLimit()
	} else {
		a.logger.Info("rate limiter disabled")
	}
	if len(a.cfg.Preview.BlockedHosts) == 0 {
		return limiter
	}
	bl := blocklist.New(a.cfg.Preview.BlockedHosts, limiter)
	a.logger.Info("preview host blocklist enabled", zap.Int("patterns", bl.Len()))
	return bl
}

func (a *App) setupRateLimit() preview.Limiter {
	a.logger.Info("rate limiter enabled",
		zap.Float64("default_rps", a.cfg.RateLimit.DefaultRPS),
		zap.Int("default_burst", a.cfg.RateLimit.DefaultBurst),
		zap.Int("domain_overrides", len(a.cfg.RateLimit.Domains)),
	)
	return ratelimit.New(ratelimit.Config{
		DefaultRPS:   a.cfg.RateLimit.DefaultRPS,
		DefaultBurst: a.cfg.RateLimit.DefaultBurst,
		Domains:      a.cfg.RateLimit.Domains,
	})
}

func (a *App) setupWarmup() *dispatcher.Dispatcher {
	if a.cfg.Preview.WarmWorkers == 0 {
		a.logger.Info("preview warm-up disabled")
		return nil
	}
	queue := queuememory.NewQueue(a.cfg.Preview.WarmQueueDepth)
	workerCfg := worker.Config{ItemTimeout: a.cfg.FetchTimeout() * 3}
	workers := make([]*worker.Worker, 0, a.cfg.Preview.WarmWorkers)
	for i := range a.cfg.Preview.WarmWorkers {
		workers = append(workers, worker.New(
			queue,
			a.previews,
			workerCfg,
			a.logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	a.logger.Info("preview warm-up enabled",
		zap.Int("workers", a.cfg.Preview.WarmWorkers),
		zap.Int("queue_depth", a.cfg.Preview.WarmQueueDepth),
	)
	return dispatcher.New(queue, workers, a.logger)
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Previews exposes the preview pipeline.
func (a *App) Previews() *preview.Service {
	return a.previews
}

// Run starts the HTTP server and blocks until the context is canceled or a signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: a.cfg.ReadHeaderTimeout(),
	}

	a.startWarmup(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			errCh <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	closeErr := a.Close(shutdownCtx)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve http: %w", err)
	default:
		return closeErr
	}
}

// startWarmup runs the warm-up workers until ctx ends or Close is called.
func (a *App) startWarmup(ctx context.Context) {
	if a.dispatch == nil || a.warmDone != nil {
		return
	}
	ctx, a.stopWarm = context.WithCancel(ctx)
	a.warmDone = make(chan struct{})
	go func() {
		defer close(a.warmDone)
		a.logger.Info("dispatcher started")
		a.dispatch.Run(ctx)
	}()
}

// stopWarmup cancels in-flight warm-ups and waits for the workers to return, so none of
// them touches the cache after it is closed.
func (a *App) stopWarmup(ctx context.Context) {
	if a.dispatch == nil {
		return
	}
	a.dispatch.Close()
	if a.warmDone == nil {
		return
	}
	a.stopWarm()
	select {
	case <-a.warmDone:
	case <-ctx.Done():
		a.logger.Warn("warm-up workers did not stop before shutdown deadline", zap.Error(ctx.Err()))
	}
}

// Close stops the warm-up workers, then releases the cache backend and flushes observability.
func (a *App) Close(ctx context.Context) error {
	a.stopWarmup(ctx)
	a.closeAll(ctx)
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
		a.tracerShutdown = nil
	}
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeAll(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}
