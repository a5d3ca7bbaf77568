// Package memory provides the bounded in-process queue feeding background preview warm-ups.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned by Dequeue once the queue is closed and drained.
var ErrClosed = errors.New("queue closed")

// Queue is a bounded in-memory queue of URLs with context-aware operations.
type Queue struct {
	ch      chan string
	closeMu sync.RWMutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		ch: make(chan string, capacity),
	}
}

// Enqueue pushes a URL into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, rawURL string) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- rawURL:
		return nil
	}
}

// TryEnqueue pushes a URL without blocking and reports whether it was accepted.
func (q *Queue) TryEnqueue(rawURL string) bool {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return false
	}
	select {
	case q.ch <- rawURL:
		return true
	default:
		return false
	}
}

// Dequeue pops the next URL, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case rawURL, ok := <-q.ch:
		if !ok {
			return "", ErrClosed
		}
		return rawURL, nil
	}
}

// Len reports the number of queued URLs.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
