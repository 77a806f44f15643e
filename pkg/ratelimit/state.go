// Package ratelimit implements a Redis-backed fixed-window request limiter
// and the HTTP middleware that applies it per client.
package ratelimit

import (
	"time"
)

// KeyPrefix namespaces limiter counters in Redis.
const KeyPrefix = "ratelimit"

// Default budget: 60 requests per client per minute.
const (
	DefaultLimit  = 60
	DefaultWindow = time.Minute
)

// Window is one client's usage of the current fixed window.
type Window struct {
	// Limit is the number of requests permitted per window.
	Limit int `json:"limit"`

	// Count is the number of requests seen so far, including this one.
	Count int `json:"count"`

	// ResetAt is when the current window ends and the counter starts over.
	ResetAt time.Time `json:"reset_at"`
}

// Allowed reports whether the request that produced this window may proceed.
func (w Window) Allowed() bool {
	return w.Count <= w.Limit
}

// Remaining returns how many requests are left in the window, never negative.
func (w Window) Remaining() int {
	if w.Count >= w.Limit {
		return 0
	}
	return w.Limit - w.Count
}

// TimeUntilReset returns the duration until the window resets relative to now.
// Returns 0 if the reset time has already passed.
func (w Window) TimeUntilReset(now time.Time) time.Duration {
	d := w.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// windowStart truncates now to the start of its fixed window.
func windowStart(now time.Time, size time.Duration) time.Time {
	return now.Truncate(size)
}
