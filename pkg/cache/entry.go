package cache

import (
	"time"
)

// Entry is one memoized JSON response.
type Entry struct {
	// Key is the request path plus raw query string the entry was stored under
	Key string

	// Payload is the exact serialized JSON body that was served
	Payload []byte

	// ContentHash is the short fingerprint of Payload, served as the ETag
	ContentHash string

	// StatusCode is the HTTP status recorded when the response was captured
	StatusCode int

	// ExpiresAt is when the entry becomes stale
	ExpiresAt time.Time
}

// IsLive reports whether the entry is still fresh at now.
func (e *Entry) IsLive(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// TTL returns the time until expiration relative to now.
// Returns 0 if already expired.
func (e *Entry) TTL(now time.Time) time.Duration {
	ttl := e.ExpiresAt.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}
