// Package usercache caches user settings in Redis.
package usercache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/Proton-105/homebox-bot/internal/domain"
)

// Cache provides Redis-backed caching for user settings. A nil Cache is a no-op.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a settings cache backed by the provided Redis client.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

// Get fetches cached settings. A miss returns nil, nil.
func (c *Cache) Get(ctx context.Context, userID int64) (*domain.UserSettings, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}

	data, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached settings: %w", err)
	}

	var s domain.UserSettings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode cached settings: %w", err)
	}

	return &s, nil
}

// Set stores the settings for the cache TTL.
func (c *Cache) Set(ctx context.Context, s domain.UserSettings) error {
	if c == nil || c.client == nil {
		return nil
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings for cache: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey(s.UserID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached settings: %w", err)
	}

	return nil
}

// Invalidate removes the cached entry if it exists.
func (c *Cache) Invalidate(ctx context.Context, userID int64) error {
	if c == nil || c.client == nil {
		return nil
	}

	if err := c.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete cached settings: %w", err)
	}

	return nil
}

func cacheKey(userID int64) string {
	return fmt.Sprintf("settings:%d", userID)
}
