package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryLimiter keeps the sliding window in process memory. It serves as the
// fallback while Redis is unreachable, so its budget is per replica.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
	log     *slog.Logger
}

func NewMemoryLimiter(log *slog.Logger) *MemoryLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &MemoryLimiter{
		windows: make(map[string][]time.Time),
		now:     time.Now,
		log:     log,
	}
}

func (m *MemoryLimiter) Check(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	requests := trimBefore(m.windows[key], now.Add(-window))

	allowed := len(requests) < limit
	if allowed {
		requests = append(requests, now)
	}

	if len(requests) == 0 {
		delete(m.windows, key)
	} else {
		m.windows[key] = requests
	}

	resetAt := now.Add(window)
	if len(requests) > 0 {
		resetAt = requests[0].Add(window)
	}

	result := newResult(allowed, limit, len(requests), resetAt)
	if !allowed {
		return result, ErrLimitExceeded
	}
	return result, nil
}

// Cleanup drops clients whose latest request is older than maxAge and
// returns how many were dropped.
func (m *MemoryLimiter) Cleanup(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}

	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := 0
	for key, requests := range m.windows {
		if len(requests) == 0 || requests[len(requests)-1].Before(cutoff) {
			delete(m.windows, key)
			dropped++
		}
	}

	if dropped > 0 {
		m.log.Debug("in-memory rate limit windows dropped", slog.Int("count", dropped))
	}
	return dropped
}

// trimBefore drops timestamps older than start. Timestamps are appended in
// order, so the slice stays sorted.
func trimBefore(requests []time.Time, start time.Time) []time.Time {
	i := 0
	for i < len(requests) && requests[i].Before(start) {
		i++
	}
	return requests[i:]
}
