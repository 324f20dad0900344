// Package ratelimit enforces per-client request budgets over a sliding window.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrLimitExceeded indicates the rate limit has been reached for the key.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// Result is the outcome of one check. ResetAt is when the oldest counted
// request leaves the window.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole number of seconds a rejected client should wait, at least one.
func (r *Result) RetryAfter(now time.Time) int {
	wait := r.ResetAt.Sub(now)
	seconds := int((wait + time.Second - 1) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}

// Limiter admits or rejects one request for key. Implementations may report
// a rejection either through Result.Allowed or ErrLimitExceeded.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

func newResult(allowed bool, limit, count int, resetAt time.Time) *Result {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return &Result{Allowed: allowed, Limit: limit, Remaining: remaining, ResetAt: resetAt}
}
