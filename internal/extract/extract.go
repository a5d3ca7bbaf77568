// Package extract reads link-preview metadata out of partial HTML documents.
//
// Input is usually a document head cut off at </head>, so parsing is best effort:
// anything that cannot be found is reported as absent rather than as an error.
package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/hnreader/internal/preview"
)

var (
	titleKeys       = []string{"og:title", "twitter:title"}
	descriptionKeys = []string{"description", "og:description", "twitter:description"}
	imageKeys       = []string{"og:image", "og:image:url", "og:image:secure_url", "twitter:image", "twitter:image:src"}
)

// Extractor implements preview.Extractor and preview.Sanitizer.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract calls the package level Extract.
func (*Extractor) Extract(fragment string) preview.Preview {
	return Extract(fragment)
}

// StripTags calls the package level StripTags.
func (*Extractor) StripTags(text string) string {
	return StripTags(text)
}

// Extract returns the title, description, image, and domain advertised by fragment.
// Description is returned raw; callers sanitize it.
func Extract(fragment string) preview.Preview {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return preview.Preview{}
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = metaContent(doc, titleKeys...)
	}

	base := baseURL(doc)
	var domain string
	if base != nil {
		domain = base.Hostname()
	}

	return preview.Preview{
		Title:       preview.String(title),
		Description: preview.String(metaContent(doc, descriptionKeys...)),
		Domain:      preview.String(domain),
		ImageURL:    preview.String(imageURL(doc, base)),
	}
}

// metaContent returns the first non-empty content among meta tags whose property or name
// matches one of keys, checked in order.
func metaContent(doc *goquery.Document, keys ...string) string {
	for _, key := range keys {
		var found string
		doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if !metaMatches(s, key) {
				return true
			}
			found = strings.TrimSpace(s.AttrOr("content", ""))
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func metaMatches(s *goquery.Selection, key string) bool {
	for _, attr := range []string{"property", "name"} {
		if v, ok := s.Attr(attr); ok && strings.EqualFold(strings.TrimSpace(v), key) {
			return true
		}
	}
	return false
}

// baseURL returns the page's own absolute URL from og:url, falling back to the canonical link.
func baseURL(doc *goquery.Document) *url.URL {
	candidates := []string{
		metaContent(doc, "og:url"),
		strings.TrimSpace(doc.Find(`link[rel="canonical"]`).First().AttrOr("href", "")),
	}
	for _, raw := range candidates {
		if u := absoluteHTTP(raw); u != nil {
			return u
		}
	}
	return nil
}

func imageURL(doc *goquery.Document, base *url.URL) string {
	candidates := make([]string, 0, len(imageKeys)+1)
	for _, key := range imageKeys {
		candidates = append(candidates, metaContent(doc, key))
	}
	candidates = append(candidates, strings.TrimSpace(doc.Find(`link[rel="image_src"]`).First().AttrOr("href", "")))

	for _, raw := range candidates {
		if raw == "" {
			continue
		}
		if u := absoluteHTTP(raw); u != nil {
			return u.String()
		}
		if base == nil {
			continue
		}
		ref, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if u := absoluteHTTP(base.ResolveReference(ref).String()); u != nil {
			return u.String()
		}
	}
	return ""
}

func absoluteHTTP(raw string) *url.URL {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil
	}
	return u
}
