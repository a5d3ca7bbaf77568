// Package system provides the wall clock used to stamp cache rows.
package system

import "time"

// Clock implements preview.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time truncated to microseconds, the resolution of the
// timestamp columns in both the Postgres and SQLite schemas.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
