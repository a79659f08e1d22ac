// Package utils provides utility functions for the application.
package utils

import (
	"time"
)

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// TimeToUTC converts a time to UTC if it's not already
func TimeToUTC(t time.Time) time.Time {
	return t.UTC()
}

// WithinWindow reports whether a and b are less than w apart, in either direction
func WithinWindow(a, b time.Time, w time.Duration) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d < w
}
