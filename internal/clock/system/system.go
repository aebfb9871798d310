// Package system provides the wall clock used outside of tests.
package system

import (
	"time"

	"github.com/JakeFAU/linkcrawler/internal/crawler"
)

// Clock implements crawler.Clock with the real time in UTC.
type Clock struct{}

var _ crawler.Clock = Clock{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Since returns the time elapsed since t.
func (Clock) Since(t time.Time) time.Duration {
	return time.Since(t)
}
