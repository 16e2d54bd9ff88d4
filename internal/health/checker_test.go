package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTelegram struct {
	err   error
	delay time.Duration
}

func (f fakeTelegram) Raw(method string, _ interface{}) ([]byte, error) {
	time.Sleep(f.delay)
	return []byte(`{"ok":true}`), f.err
}

type fakeHomeBox struct{ err error }

func (f fakeHomeBox) Ping(context.Context) error { return f.err }

func TestCheckerAggregates(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewChecker(slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.AddCheck("redis", NewRedisChecker(client))
	c.AddCheck("telegram", NewTelegramChecker(fakeTelegram{}))
	c.AddCheck("homebox", NewHomeBoxChecker(fakeHomeBox{err: errors.New("401 unauthorized")}))
	c.AddCheck("", NewHomeBoxChecker(nil))

	results := c.Check(context.Background())
	require.Len(t, results, 3)
	assert.Equal(t, "OK", results["redis"])
	assert.Equal(t, "OK", results["telegram"])
	assert.Equal(t, "401 unauthorized", results["homebox"])
	assert.False(t, Healthy(results))
	assert.Equal(t, []string{"homebox", "redis", "telegram"}, c.Names())
}

func TestCheckerTimesOut(t *testing.T) {
	c := NewChecker(slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.timeout = 20 * time.Millisecond
	c.AddCheck("telegram", NewTelegramChecker(fakeTelegram{delay: time.Second}))

	results := c.Check(context.Background())
	assert.Equal(t, context.DeadlineExceeded.Error(), results["telegram"])
}

func TestNilDependencies(t *testing.T) {
	ctx := context.Background()
	assert.Error(t, NewDBChecker(nil).HealthCheck(ctx))
	assert.Error(t, NewRedisChecker(nil).HealthCheck(ctx))
	assert.Error(t, NewTelegramChecker(nil).HealthCheck(ctx))
	assert.True(t, Healthy(map[string]string{"db": "OK"}))
}
