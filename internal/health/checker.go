// Package health runs readiness checks against the bot's dependencies.
package health

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const defaultCheckTimeout = 5 * time.Second

// Checkable represents a component that can report its health status.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// CheckFunc adapts a function to Checkable.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// Checker aggregates health checks for multiple components.
type Checker struct {
	log     *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	checks map[string]Checkable
}

// NewChecker instantiates a Checker with the provided logger.
func NewChecker(log *slog.Logger) *Checker {
	if log == nil {
		log = slog.Default()
	}

	return &Checker{
		log:     log,
		timeout: defaultCheckTimeout,
		checks:  make(map[string]Checkable),
	}
}

// AddCheck registers a checkable component by name.
func (c *Checker) AddCheck(name string, check Checkable) {
	if name == "" || check == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Names lists the registered components.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs all registered health checks concurrently and returns "OK" or the error text per component.
func (c *Checker) Check(ctx context.Context) map[string]string {
	c.mu.RLock()
	checks := make(map[string]Checkable, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	var (
		mu      sync.Mutex
		results = make(map[string]string, len(checks))
		g       errgroup.Group
	)

	for name, check := range checks {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			status := "OK"
			if err := check.HealthCheck(checkCtx); err != nil {
				status = err.Error()
				c.log.Warn("health check failed", slog.String("component", name), slog.Any("error", err))
			}

			mu.Lock()
			results[name] = status
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Healthy reports whether every result is OK.
func Healthy(results map[string]string) bool {
	for _, status := range results {
		if status != "OK" {
			return false
		}
	}
	return true
}

// Pinger is implemented by *sql.DB and *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// NewDBChecker pings the settings database.
func NewDBChecker(db Pinger) Checkable {
	return CheckFunc(func(ctx context.Context) error {
		if db == nil {
			return errors.New("database is not configured")
		}
		return db.PingContext(ctx)
	})
}

// RedisPinger abstracts the subset of redis.Client used for health checks.
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// NewRedisChecker issues a PING against Redis.
func NewRedisChecker(pinger RedisPinger) Checkable {
	return CheckFunc(func(ctx context.Context) error {
		if pinger == nil {
			return redis.ErrClosed
		}
		return pinger.Ping(ctx).Err()
	})
}

// TelegramAPI is the part of telebot.Bot used to probe the Bot API.
type TelegramAPI interface {
	Raw(method string, payload interface{}) ([]byte, error)
}

// NewTelegramChecker calls getMe. Telebot does not take a context, so the call is
// abandoned, not cancelled, when ctx expires.
func NewTelegramChecker(api TelegramAPI) Checkable {
	return CheckFunc(func(ctx context.Context) error {
		if api == nil {
			return errors.New("telegram bot is not initialized")
		}

		done := make(chan error, 1)
		go func() {
			_, err := api.Raw("getMe", nil)
			done <- err
		}()

		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// HomeBoxPinger is implemented by the HomeBox client.
type HomeBoxPinger interface {
	Ping(ctx context.Context) error
}

// NewHomeBoxChecker verifies the inventory API answers and accepts our credentials.
func NewHomeBoxChecker(client HomeBoxPinger) Checkable {
	return CheckFunc(func(ctx context.Context) error {
		if client == nil {
			return errors.New("homebox client is not configured")
		}
		return client.Ping(ctx)
	})
}
