// Package system provides a real clock implementation.
package system

import "time"

// Clock implements pricewatch.Clock using time.Now. The crawl pipeline keys
// price rows by the clock's calendar day, so runs and tests share one time
// source.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
