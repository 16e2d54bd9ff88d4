package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Claim states.
const (
	StatusProcessing = "processing"
	StatusDone       = "done"
)

const keyPrefix = "homebox-bot:update:"

// Store records which updates have been claimed.
type Store interface {
	// Claim marks key as processing unless any claim exists. It reports whether the caller owns the key.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Status(ctx context.Context, key string) (string, error)
	Complete(ctx context.Context, key string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// RedisStore keeps claims as plain string keys with a TTL.
type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedisStore(client *redis.Client, log *slog.Logger) *RedisStore {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStore{client: client, log: log}
}

func (s *RedisStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, keyPrefix+key, StatusProcessing, ttl).Result()
	if err != nil {
		s.log.Error("failed to claim update", slog.String("key", key), slog.Any("error", err))
		return false, err
	}
	return ok, nil
}

func (s *RedisStore) Status(ctx context.Context, key string) (string, error) {
	status, err := s.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		s.log.Error("failed to read update claim", slog.String("key", key), slog.Any("error", err))
		return "", err
	}
	return status, nil
}

func (s *RedisStore) Complete(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Set(ctx, keyPrefix+key, StatusDone, ttl).Err(); err != nil {
		s.log.Error("failed to complete update claim", slog.String("key", key), slog.Any("error", err))
		return err
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		s.log.Error("failed to release update claim", slog.String("key", key), slog.Any("error", err))
		return err
	}
	return nil
}
