// Package common provides shared utilities for the analyst service
package common

import "time"

// DefaultCacheMaxAge is used when no valid max_age is configured
const DefaultCacheMaxAge = 10 * time.Minute

// IsFresh returns true if updated is within maxAge of now.
// A zero timestamp or a non-positive maxAge is never fresh.
func IsFresh(updated, now time.Time, maxAge time.Duration) bool {
	if updated.IsZero() || maxAge <= 0 {
		return false
	}
	return now.Sub(updated) < maxAge
}
