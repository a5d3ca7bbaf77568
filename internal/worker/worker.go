// Package worker implements the background preview warm-up loop.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/hnreader/internal/preview"
	"github.com/JakeFAU/hnreader/internal/queue/memory"
	"github.com/JakeFAU/hnreader/internal/telemetry"
)

// Source yields URLs to warm.
type Source interface {
	Dequeue(ctx context.Context) (string, error)
}

// Previewer produces and caches previews.
type Previewer interface {
	PreviewFromURL(ctx context.Context, rawURL string) (preview.Preview, bool)
}

// Config controls Worker behavior.
type Config struct {
	// ItemTimeout bounds a single warm-up, including rate-limit waits.
	ItemTimeout time.Duration
}

const defaultItemTimeout = 30 * time.Second

// Worker consumes queued URLs and runs them through the preview pipeline so later
// requests are served from the cache.
type Worker struct {
	source   Source
	previews Previewer
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Worker.
func New(source Source, previews Previewer, cfg Config, logger *zap.Logger) *Worker {
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = defaultItemTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		source:   source,
		previews: previews,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run blocks, consuming URLs until the context finishes or the source is closed.
func (w *Worker) Run(ctx context.Context) {
	for {
		rawURL, err := w.source.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, memory.ErrClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.warm(ctx, rawURL)
	}
}

func (w *Worker) warm(ctx context.Context, rawURL string) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.ItemTimeout)
	defer cancel()

	if _, ok := w.previews.PreviewFromURL(ctx, rawURL); !ok {
		telemetry.ObservePreviewWarm(telemetry.WarmEmpty)
		w.logger.Debug("warm-up produced no preview", zap.String("url", rawURL))
		return
	}
	telemetry.ObservePreviewWarm(telemetry.WarmOK)
	w.logger.Debug("preview warmed", zap.String("url", rawURL))
}
