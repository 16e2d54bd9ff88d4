package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/homebox-bot/pkg/config"
)

func TestMemoryLimiterSlidingWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := NewMemoryLimiter(testLogger())
	m.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := m.Check(ctx, "photo:1", 2, time.Minute)
		require.NoError(t, err)
	}

	result, err := m.Check(ctx, "photo:1", 2, time.Minute)
	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.Equal(t, time.Minute, result.RetryAfter(now))

	now = now.Add(time.Minute + time.Millisecond)
	_, err = m.Check(ctx, "photo:1", 2, time.Minute)
	assert.NoError(t, err)
}

func TestMemoryLimiterCleanup(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := NewMemoryLimiter(testLogger())
	m.now = func() time.Time { return now }

	_, _ = m.Check(context.Background(), "user:1", 5, time.Minute)
	_, _ = m.Check(context.Background(), "user:2", 5, time.Minute)

	now = now.Add(10 * time.Minute)
	_, _ = m.Check(context.Background(), "user:2", 5, time.Minute)

	assert.Equal(t, 1, m.Cleanup(5*time.Minute))
	assert.Equal(t, 1, m.Len())
}

func TestRules(t *testing.T) {
	rules, err := NewRules(config.RateLimitConfig{
		Whitelist: []int64{7},
		Global:    config.RateLimitRule{Limit: 100, Window: "1s"},
		PerUser:   config.RateLimitRule{Limit: 20, Window: "1m"},
	})
	require.NoError(t, err)

	assert.True(t, rules.IsWhitelisted(7))
	assert.False(t, rules.IsWhitelisted(8))
	assert.Equal(t, Rule{Limit: 20, Window: time.Minute}, rules.Get(KindUser))
	assert.False(t, rules.Get(KindPhoto).Enabled())
	assert.Equal(t, "global", Key(KindGlobal, 5))
	assert.Equal(t, "photo:5", Key(KindPhoto, 5))

	_, err = NewRules(config.RateLimitConfig{PerUser: config.RateLimitRule{Limit: 1, Window: "soon"}})
	assert.Error(t, err)
}
