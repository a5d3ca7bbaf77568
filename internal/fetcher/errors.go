// Package fetcher holds the error taxonomy shared by the partial HTML fetcher backends.
package fetcher

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies why a partial fetch failed.
type Kind string

// Fetch failure kinds.
const (
	KindRequest Kind = "request"
	KindNetwork Kind = "network"
	KindStatus  Kind = "status"
	KindDecode  Kind = "decode"
	KindTimeout Kind = "timeout"
)

// FetchError reports a failed partial fetch. StatusCode is set for KindStatus.
type FetchError struct {
	Kind       Kind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewError builds a FetchError, promoting context deadline failures to KindTimeout.
func NewError(kind Kind, url string, err error) *FetchError {
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &FetchError{Kind: kind, URL: url, Err: err}
}

// StatusError builds a FetchError for a non-success HTTP response.
func StatusError(url string, code int) *FetchError {
	return &FetchError{Kind: KindStatus, URL: url, StatusCode: code}
}

// KindOf extracts the failure kind from err, or "" when err is not a FetchError.
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
