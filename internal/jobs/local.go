package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Every calls fn each interval until ctx is done. It stands in for the asynq
// scheduler when Redis is disabled.
func Every(ctx context.Context, interval time.Duration, name string, fn func(context.Context) error, log *slog.Logger) {
	if interval <= 0 || fn == nil {
		return
	}
	if log == nil {
		log = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				log.Warn("periodic task failed", slog.String("task", name), slog.Any("error", err))
			}
		}
	}
}

func sprint(args []interface{}) string {
	return fmt.Sprint(args...)
}
