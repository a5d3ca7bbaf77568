package extract

import (
	"regexp"
	"strings"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// StripTags deletes anything that looks like a markup tag and trims the ends. Text between
// tags is kept byte for byte, and applying it twice gives the same result as applying it once.
func StripTags(text string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(text, ""))
}
