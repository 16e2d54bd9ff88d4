// Package ratelimit throttles updates per user, globally and for photo uploads.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// Result is the outcome of one check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is how long the caller should wait before the next attempt, rounded up to a second.
func (r *Result) RetryAfter(now time.Time) time.Duration {
	if r == nil || r.Allowed || !r.ResetAt.After(now) {
		return 0
	}
	d := r.ResetAt.Sub(now)
	if rem := d % time.Second; rem != 0 {
		d += time.Second - rem
	}
	return d
}

// Limiter counts hits for key within a sliding window.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// ErrLimitExceeded is returned alongside a rejected Result.
var ErrLimitExceeded = errors.New("rate limit exceeded")
