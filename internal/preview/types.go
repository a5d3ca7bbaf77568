// Package preview defines the link-preview pipeline: its value types, the collaborator
// interfaces it depends on, and the Service that sequences cache lookup, partial fetch,
// extraction, sanitization, and cache write.
package preview

import "time"

// Preview summarizes a linked page. Absent fields are nil and encode as JSON null.
type Preview struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Domain      *string `json:"domain"`
	ImageURL    *string `json:"image_url"`
}

// IsEmpty reports whether no field could be extracted.
func (p Preview) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Domain == nil && p.ImageURL == nil
}

// Equal compares two previews field by field.
func (p Preview) Equal(other Preview) bool {
	return equalPtr(p.Title, other.Title) &&
		equalPtr(p.Description, other.Description) &&
		equalPtr(p.Domain, other.Domain) &&
		equalPtr(p.ImageURL, other.ImageURL)
}

// CacheEntry is the persisted form of a Preview, keyed by the hash of its source URL.
type CacheEntry struct {
	ID          string    `json:"id"`
	URLHash     string    `json:"url_hash"`
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Domain      *string   `json:"domain"`
	ImageURL    *string   `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewCacheEntry builds the row written on the first successful scrape of a URL.
func NewCacheEntry(id, urlHash string, p Preview, now time.Time) CacheEntry {
	return CacheEntry{
		ID:          id,
		URLHash:     urlHash,
		Title:       p.Title,
		Description: p.Description,
		Domain:      p.Domain,
		ImageURL:    p.ImageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Preview maps a cached row back to the value returned to callers.
func (e CacheEntry) Preview() Preview {
	return Preview{
		Title:       e.Title,
		Description: e.Description,
		Domain:      e.Domain,
		ImageURL:    e.ImageURL,
	}
}

// String returns a pointer to s, or nil when s is empty.
func String(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
