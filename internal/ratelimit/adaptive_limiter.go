package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Proton-105/billsafe/pkg/metrics"
)

// AdaptiveLimiter delegates to a shared backend and switches to a
// per-replica fallback with half the budget while the shared backend fails.
// Two replicas serving one client then stay close to the configured limit.
type AdaptiveLimiter struct {
	primary  Limiter
	fallback Limiter
	degraded atomic.Bool
	log      *slog.Logger
}

func NewAdaptiveLimiter(primary, fallback Limiter, log *slog.Logger) *AdaptiveLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &AdaptiveLimiter{primary: primary, fallback: fallback, log: log}
}

func (a *AdaptiveLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	result, err := a.primary.Check(ctx, key, limit, window)
	if err == nil || errors.Is(err, ErrLimitExceeded) {
		if a.degraded.CompareAndSwap(true, false) {
			a.log.Info("rate limiter recovered, shared backend in use again")
		}
		return a.decide("redis", result)
	}

	metrics.RecordRateLimitBackendError("redis")
	if a.degraded.CompareAndSwap(false, true) {
		a.log.Warn("rate limiter degraded to in-memory fallback", slog.Any("error", err))
	}

	result, err = a.fallback.Check(ctx, key, max(limit/2, 1), window)
	if err != nil && !errors.Is(err, ErrLimitExceeded) {
		metrics.RecordRateLimitBackendError("memory")
		return nil, err
	}
	return a.decide("memory", result)
}

// Degraded reports whether the fallback is currently in use.
func (a *AdaptiveLimiter) Degraded() bool {
	return a.degraded.Load()
}

func (a *AdaptiveLimiter) decide(backend string, result *Result) (*Result, error) {
	metrics.RecordRateLimit(backend, result.Allowed)
	if !result.Allowed {
		return result, ErrLimitExceeded
	}
	return result, nil
}
