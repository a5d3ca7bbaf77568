// Package dispatcher manages worker fan-out over the warm-up queue.
package dispatcher

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/hnreader/internal/queue/memory"
	"github.com/JakeFAU/hnreader/internal/telemetry"
	"github.com/JakeFAU/hnreader/internal/worker"
)

// Dispatcher fans out queued URLs to a pool of workers.
type Dispatcher struct {
	queue   *memory.Queue
	workers []*worker.Worker
	logger  *zap.Logger
}

// New creates a Dispatcher.
func New(queue *memory.Queue, workers []*worker.Worker, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:   queue,
		workers: workers,
		logger:  logger.Named("dispatcher"),
	}
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}

// Offer queues URLs for warm-up without blocking. URLs that do not fit are dropped and
// fetched on demand later. It returns how many were accepted.
func (d *Dispatcher) Offer(urls ...string) int {
	accepted := 0
	for _, u := range urls {
		if u == "" {
			continue
		}
		if !d.queue.TryEnqueue(u) {
			telemetry.ObservePreviewWarm(telemetry.WarmDropped)
			continue
		}
		telemetry.ObservePreviewWarm(telemetry.WarmQueued)
		accepted++
	}
	if accepted < len(urls) {
		d.logger.Debug("warm-up queue full, dropped urls",
			zap.Int("offered", len(urls)),
			zap.Int("accepted", accepted),
		)
	}
	return accepted
}

// Close stops accepting URLs and lets workers drain what is queued.
func (d *Dispatcher) Close() {
	d.queue.Close()
}
