package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "homebox-bot:ratelimit:"

// slidingWindow trims the window, admits the hit only when under the limit and
// reports the oldest hit so callers know when a slot frees up.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count < limit then
	redis.call('ZADD', key, now, ARGV[4])
	redis.call('PEXPIRE', key, window)
	return {1, limit - count - 1, 0}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
return {0, 0, oldest[2]}
`)

// RedisLimiter shares counters between replicas using sorted sets.
type RedisLimiter struct {
	client *redis.Client
	log    *slog.Logger
	now    func() time.Time
}

var _ Limiter = (*RedisLimiter)(nil)

func NewRedisLimiter(client *redis.Client, log *slog.Logger) *RedisLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &RedisLimiter{client: client, log: log, now: time.Now}
}

func (l *RedisLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if l.client == nil {
		return nil, errors.New("ratelimit: redis client is not configured")
	}

	now := l.now()
	if limit <= 0 {
		return &Result{ResetAt: now.Add(window)}, ErrLimitExceeded
	}

	nowMs := now.UnixMilli()
	raw, err := slidingWindow.Run(ctx, l.client, []string{redisKeyPrefix + key},
		nowMs, window.Milliseconds(), limit, uuid.NewString()).Slice()
	if err != nil {
		l.log.Error("rate limiter script failed", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}
	if len(raw) != 3 {
		return nil, fmt.Errorf("ratelimit: unexpected script reply %v", raw)
	}

	allowed, _ := raw[0].(int64)
	remaining, _ := raw[1].(int64)

	if allowed == 1 {
		return &Result{Allowed: true, Remaining: int(remaining), ResetAt: now.Add(window)}, nil
	}

	resetAt := now.Add(window)
	if oldest, err := strconv.ParseFloat(fmt.Sprint(raw[2]), 64); err == nil && oldest > 0 {
		resetAt = time.UnixMilli(int64(oldest)).Add(window)
	}

	return &Result{ResetAt: resetAt}, ErrLimitExceeded
}
