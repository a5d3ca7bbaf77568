package hackernews

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the API has no item for an id.
	ErrNotFound = errors.New("hacker news item not found")
	// ErrNotStory is returned when an id belongs to something other than a story.
	ErrNotStory = errors.New("the provided id doesn't belong to a story item")
	// ErrNotComment is returned when a story kid is not a comment.
	ErrNotComment = errors.New("the provided id doesn't belong to a comment item")
	// ErrInvalidPage is returned for page numbers below one.
	ErrInvalidPage = errors.New("page must be a positive integer")
)

// UpstreamError reports a failed call to the Hacker News API.
type UpstreamError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("hacker news %s: unexpected status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("hacker news %s: %v", e.Endpoint, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsUpstream reports whether err came from the API transport rather than from the caller's input.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
