// Package lru fronts a preview cache with a bounded in-process tier.
//
// Cached rows are never updated after insert, so entries held here cannot go stale.
package lru

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/JakeFAU/hnreader/internal/preview"
)

// Cache implements preview.Cache as a read-through layer over another preview.Cache.
type Cache struct {
	next  preview.Cache
	items *lru.Cache[string, preview.CacheEntry]
}

// New wraps next with an LRU holding at most size rows.
func New(next preview.Cache, size int) (*Cache, error) {
	if next == nil {
		return nil, fmt.Errorf("lru cache requires a backing store")
	}
	items, err := lru.New[string, preview.CacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Cache{next: next, items: items}, nil
}

// Find serves from memory when possible and remembers rows found in the backing store.
func (c *Cache) Find(ctx context.Context, urlHash string) (*preview.CacheEntry, error) {
	if entry, ok := c.items.Get(urlHash); ok {
		return &entry, nil
	}
	entry, err := c.next.Find(ctx, urlHash)
	if err != nil || entry == nil {
		return entry, err
	}
	c.items.Add(urlHash, *entry)
	return entry, nil
}

// Store writes through to the backing store and caches the row on success.
func (c *Cache) Store(ctx context.Context, urlHash string, p preview.Preview) (preview.CacheEntry, error) {
	entry, err := c.next.Store(ctx, urlHash, p)
	if err != nil {
		return entry, err
	}
	c.items.Add(urlHash, entry)
	return entry, nil
}

// Len returns the number of rows held in memory.
func (c *Cache) Len() int {
	return c.items.Len()
}
