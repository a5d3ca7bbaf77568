package preview

import (
	"context"
	"time"
)

// Hasher maps a raw URL to its fixed-length cache key.
type Hasher interface {
	Hash(raw string) string
}

// Fetcher retrieves the leading portion of an HTML document, up to and including </head>.
type Fetcher interface {
	FetchPartial(ctx context.Context, url string) (string, error)
}

// Cache persists previews keyed by URL hash. Find returns nil, nil on a miss.
type Cache interface {
	Find(ctx context.Context, urlHash string) (*CacheEntry, error)
	Store(ctx context.Context, urlHash string, p Preview) (CacheEntry, error)
}

// Limiter throttles outbound fetches per origin.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces cache row IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Extractor reads preview metadata out of an HTML fragment. It never fails.
type Extractor interface {
	Extract(fragment string) Preview
}

// Sanitizer removes markup from scraped text.
type Sanitizer interface {
	StripTags(text string) string
}
