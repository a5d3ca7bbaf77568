// Package blocklist refuses preview fetches for configured hosts before any network access.
package blocklist

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/JakeFAU/hnreader/internal/preview"
)

// ErrBlocked is returned by Wait for URLs whose host matches the blocklist.
var ErrBlocked = errors.New("host is blocklisted")

// Blocklist stores exact hosts and suffix wildcards derived from configuration. It gates
// an optional next limiter so both policies compose behind preview.Limiter.
type Blocklist struct {
	exact    map[string]struct{}
	suffixes []string
	next     preview.Limiter
}

// New builds a Blocklist from patterns such as "example.org", "*.ru" or ".internal".
// next may be nil.
func New(patterns []string, next preview.Limiter) *Blocklist {
	b := &Blocklist{
		exact: make(map[string]struct{}),
		next:  next,
	}
	for _, raw := range patterns {
		value := strings.TrimSpace(strings.ToLower(raw))
		if value == "" {
			continue
		}
		switch {
		case strings.HasPrefix(value, "*."):
			b.addSuffix(strings.TrimPrefix(value, "*."))
		case strings.HasPrefix(value, "."):
			b.addSuffix(strings.TrimPrefix(value, "."))
		default:
			b.exact[value] = struct{}{}
		}
	}
	return b
}

func (b *Blocklist) addSuffix(suffix string) {
	if suffix == "" {
		return
	}
	for _, existing := range b.suffixes {
		if existing == suffix {
			return
		}
	}
	b.suffixes = append(b.suffixes, suffix)
}

// Len reports the number of patterns.
func (b *Blocklist) Len() int {
	if b == nil {
		return 0
	}
	return len(b.exact) + len(b.suffixes)
}

// IsBlocked reports whether host matches an exact entry or a suffix.
func (b *Blocklist) IsBlocked(host string) bool {
	if b == nil {
		return false
	}
	host = strings.TrimSuffix(strings.TrimSpace(strings.ToLower(host)), ".")
	if host == "" {
		return false
	}
	if _, exact := b.exact[host]; exact {
		return true
	}
	for _, suffix := range b.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

// Wait fails fast for blocked hosts and otherwise defers to the next limiter.
func (b *Blocklist) Wait(ctx context.Context, rawURL string) error {
	if u, err := url.Parse(rawURL); err == nil && b.IsBlocked(u.Hostname()) {
		return fmt.Errorf("%w: %s", ErrBlocked, u.Hostname())
	}
	if b == nil || b.next == nil {
		return nil
	}
	if err := b.next.Wait(ctx, rawURL); err != nil {
		return fmt.Errorf("next limiter: %w", err)
	}
	return nil
}
