package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratelimit_checks_total",
		Help: "Rate limit checks by backend and result.",
	}, []string{"backend", "result"})

	backendErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ratelimit_backend_errors_total",
		Help: "Primary limiter failures that fell back to memory.",
	})
)

// AdaptiveLimiter uses the primary (Redis) limiter and switches to a stricter
// in-memory one while the primary fails.
type AdaptiveLimiter struct {
	primary  Limiter
	fallback Limiter
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
		checksTotal.WithLabelValues("redis", resultLabel(err)).Inc()
		return result, err
	}

	backendErrorsTotal.Inc()
	a.log.Warn("redis limiter failed, falling back to memory", slog.String("key", key), slog.Any("error", err))

	// each replica enforces its own copy, so halve the budget
	fallbackLimit := limit / 2
	if fallbackLimit <= 0 {
		fallbackLimit = 1
	}

	result, err = a.fallback.Check(ctx, key, fallbackLimit, window)
	checksTotal.WithLabelValues("memory", resultLabel(err)).Inc()
	return result, err
}

func resultLabel(err error) string {
	if err == nil {
		return "allowed"
	}
	if errors.Is(err, ErrLimitExceeded) {
		return "rejected"
	}
	return "error"
}
