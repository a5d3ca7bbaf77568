// Package memory keeps preview cache rows in process memory for development and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/hnreader/internal/preview"
	"github.com/JakeFAU/hnreader/internal/storage"
)

var errDuplicateHash = errors.New("url_hash already cached")

// PreviewStore implements preview.Cache with a map guarded by a RWMutex.
// Rows are insert-only, matching the relational backends.
type PreviewStore struct {
	mu    sync.RWMutex
	rows  map[string]preview.CacheEntry
	ids   preview.IDGenerator
	clock preview.Clock
}

// NewPreviewStore constructs a PreviewStore.
func NewPreviewStore(ids preview.IDGenerator, clock preview.Clock) *PreviewStore {
	return &PreviewStore{
		rows:  make(map[string]preview.CacheEntry),
		ids:   ids,
		clock: clock,
	}
}

// Find returns the row for urlHash, or nil when none exists.
func (s *PreviewStore) Find(_ context.Context, urlHash string) (*preview.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.rows[urlHash]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// Store inserts a new row. A second insert for the same hash fails with a conflict.
func (s *PreviewStore) Store(_ context.Context, urlHash string, p preview.Preview) (preview.CacheEntry, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return preview.CacheEntry{}, storage.NewError(storage.KindQuery, "store", urlHash, fmt.Errorf("new id: %w", err))
	}
	entry := preview.NewCacheEntry(id, urlHash, p, s.clock.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[urlHash]; exists {
		return preview.CacheEntry{}, storage.NewError(storage.KindConflict, "store", urlHash, errDuplicateHash)
	}
	s.rows[urlHash] = entry
	return entry, nil
}

// Len returns the number of cached rows.
func (s *PreviewStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Ping always succeeds; it lets the store stand in wherever a readiness check is wired.
func (s *PreviewStore) Ping(context.Context) error {
	return nil
}
