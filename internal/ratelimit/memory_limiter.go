package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryLimiter is a per-process sliding window used when Redis is disabled or failing.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
	log     *slog.Logger
	now     func() time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

func NewMemoryLimiter(log *slog.Logger) *MemoryLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &MemoryLimiter{
		buckets: make(map[string][]time.Time),
		log:     log,
		now:     time.Now,
	}
}

func (m *MemoryLimiter) Check(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	hits := keepRecent(m.buckets[key], now.Add(-window))
	if len(hits) >= limit {
		m.buckets[key] = hits
		resetAt := now.Add(window)
		if len(hits) > 0 {
			resetAt = hits[0].Add(window)
		}
		return &Result{ResetAt: resetAt}, ErrLimitExceeded
	}

	hits = append(hits, now)
	m.buckets[key] = hits

	return &Result{
		Allowed:   true,
		Remaining: limit - len(hits),
		ResetAt:   hits[0].Add(window),
	}, nil
}

// Cleanup drops buckets whose newest hit is older than maxAge. It returns the number removed.
func (m *MemoryLimiter) Cleanup(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}

	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, hits := range m.buckets {
		if len(hits) == 0 || hits[len(hits)-1].Before(cutoff) {
			delete(m.buckets, key)
			removed++
		}
	}
	return removed
}

// Len is the number of tracked keys.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

func keepRecent(hits []time.Time, windowStart time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(windowStart) {
		i++
	}
	if i == 0 {
		return hits
	}

	n := copy(hits, hits[i:])
	return hits[:n]
}
