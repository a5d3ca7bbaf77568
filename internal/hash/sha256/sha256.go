// Package sha256 derives preview cache keys from raw URLs.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Size is the length of a key produced by Hash.
const Size = sha256.Size * 2

// Hasher implements preview.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the uppercase hex SHA-256 digest of raw. The URL is hashed byte for byte;
// no normalization is applied, so differently spelled URLs get different keys.
func (h *Hasher) Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Valid reports whether key has the shape of a Hash result.
func Valid(key string) bool {
	if len(key) != Size {
		return false
	}
	for _, r := range key {
		if (r < '0' || r > '9') && (r < 'A' || r > 'F') {
			return false
		}
	}
	return true
}
