package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func TestRedisLimiter_AllowsWithinLimit(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := NewRedisLimiter(client, testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.Check(ctx, "user:1", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 5-i-1, result.Remaining)
	}
}

func TestRedisLimiter_BlocksWhenExceeded(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := NewRedisLimiter(client, testLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := limiter.Check(ctx, "user:2", 2, time.Minute)
		require.NoError(t, err)
	}

	result, err := limiter.Check(ctx, "user:2", 2, time.Minute)
	assert.ErrorIs(t, err, ErrLimitExceeded)
	require.NotNil(t, result)
	assert.False(t, result.Allowed)
	assert.True(t, result.ResetAt.After(time.Now()))
}

func TestRedisLimiter_RejectedHitsDoNotExtendWindow(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := NewRedisLimiter(client, testLogger())
	ctx := context.Background()

	base := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return base }

	_, err := limiter.Check(ctx, "user:3", 1, time.Minute)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err = limiter.Check(ctx, "user:3", 1, time.Minute)
		assert.ErrorIs(t, err, ErrLimitExceeded)
	}

	limiter.now = func() time.Time { return base.Add(61 * time.Second) }
	result, err := limiter.Check(ctx, "user:3", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestAdaptiveLimiterFallsBack(t *testing.T) {
	client, mr := setupTestRedis(t)
	limiter := NewAdaptiveLimiter(NewRedisLimiter(client, testLogger()), NewMemoryLimiter(testLogger()), testLogger())
	ctx := context.Background()

	mr.Close()

	// the fallback halves the limit of 4
	for i := 0; i < 2; i++ {
		_, err := limiter.Check(ctx, "user:4", 4, time.Minute)
		require.NoError(t, err)
	}
	_, err := limiter.Check(ctx, "user:4", 4, time.Minute)
	assert.ErrorIs(t, err, ErrLimitExceeded)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
