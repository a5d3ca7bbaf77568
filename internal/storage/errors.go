// Package storage holds the error taxonomy shared by the preview cache backends.
package storage

import (
	"errors"
	"fmt"
)

// Kind classifies a preview cache failure.
type Kind string

// Store failure kinds.
const (
	KindNotConfigured Kind = "not_configured"
	KindConflict      Kind = "conflict"
	KindQuery         Kind = "query"
)

// ErrNotConfigured signals a store used before its pool was set up.
var ErrNotConfigured = errors.New("preview store is not configured")

// StoreError reports a failed cache operation.
type StoreError struct {
	Kind    Kind
	Op      string
	URLHash string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s preview %s: %s: %v", e.Op, e.URLHash, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewError builds a StoreError for the given operation ("find" or "store").
func NewError(kind Kind, op, urlHash string, err error) *StoreError {
	return &StoreError{Kind: kind, Op: op, URLHash: urlHash, Err: err}
}

// IsConflict reports whether err is a uniqueness violation on url_hash.
func IsConflict(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Kind == KindConflict
}
