// Package idempotency drops Telegram updates that were already handled, which
// happens when a webhook delivery is retried or two replicas poll the same bot.
package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var (
	// ErrInProgress means another worker is handling the same update.
	ErrInProgress = errors.New("update is already being handled")
	// ErrDuplicate means the update was handled before.
	ErrDuplicate = errors.New("update was already handled")
)

const (
	defaultProcessingTTL = 5 * time.Minute
	defaultDoneTTL       = 24 * time.Hour
)

// Operation is the guarded work.
type Operation func(ctx context.Context) error

// Manager runs an operation at most once per key.
type Manager interface {
	Execute(ctx context.Context, key string, fn Operation) error
}

type manager struct {
	store         Store
	processingTTL time.Duration
	doneTTL       time.Duration
	log           *slog.Logger
}

// NewManager builds a Manager. doneTTL is how long a handled key is remembered.
func NewManager(store Store, doneTTL time.Duration, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}
	if doneTTL <= 0 {
		doneTTL = defaultDoneTTL
	}

	return &manager{
		store:         store,
		processingTTL: defaultProcessingTTL,
		doneTTL:       doneTTL,
		log:           log,
	}
}

// Execute runs fn if key is unclaimed. A failed fn releases the claim so a redelivery can retry.
// Store errors never block the update: fn runs unguarded.
func (m *manager) Execute(ctx context.Context, key string, fn Operation) error {
	if fn == nil {
		return errors.New("idempotency: nil operation")
	}

	owned, err := m.store.Claim(ctx, key, m.processingTTL)
	if err != nil {
		m.log.Warn("idempotency store unavailable, running unguarded", slog.String("key", key), slog.Any("error", err))
		return fn(ctx)
	}

	if !owned {
		status, err := m.store.Status(ctx, key)
		if err != nil {
			return fn(ctx)
		}
		if status == StatusDone {
			return ErrDuplicate
		}
		return ErrInProgress
	}

	if err := fn(ctx); err != nil {
		if relErr := m.store.Release(context.WithoutCancel(ctx), key); relErr != nil {
			m.log.Warn("failed to release update claim", slog.String("key", key), slog.Any("error", relErr))
		}
		return err
	}

	if err := m.store.Complete(context.WithoutCancel(ctx), key, m.doneTTL); err != nil {
		m.log.Warn("failed to mark update handled", slog.String("key", key), slog.Any("error", err))
	}
	return nil
}
