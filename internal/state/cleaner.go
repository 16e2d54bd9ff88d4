package state

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper resets sessions that have been idle longer than ttl and reports how many it reset.
type Sweeper interface {
	ExpireIdle(ctx context.Context, ttl time.Duration) int
}

// Cleaner expires stale sessions on a schedule.
type Cleaner struct {
	sweeper  Sweeper
	log      *slog.Logger
	ttl      time.Duration
	interval time.Duration
}

// NewCleaner constructs a Cleaner instance.
func NewCleaner(sweeper Sweeper, log *slog.Logger, ttl, interval time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		sweeper:  sweeper,
		log:      log,
		ttl:      ttl,
		interval: interval,
	}
}

// Run starts the cleanup loop until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c == nil || c.sweeper == nil || c.interval <= 0 || c.ttl <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("state cleaner stopped", slog.String("reason", context.Cause(ctx).Error()))
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Sweep performs a single expiry pass.
func (c *Cleaner) Sweep(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}

	expired := c.sweeper.ExpireIdle(ctx, c.ttl)
	if expired > 0 {
		c.log.Info("idle sessions expired", slog.Int("count", expired), slog.Duration("ttl", c.ttl))
	}
	return expired
}
