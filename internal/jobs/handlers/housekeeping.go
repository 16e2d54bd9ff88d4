// Package handlers processes the housekeeping tasks.
package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/homebox-bot/internal/jobs"
)

// PhotoSweeper deletes staged photos older than age.
type PhotoSweeper interface {
	SweepOlderThan(age time.Duration) (int, error)
}

// PhotoSweepHandler processes photo:sweep.
type PhotoSweepHandler struct {
	sweeper PhotoSweeper
	log     *slog.Logger
}

func NewPhotoSweepHandler(sweeper PhotoSweeper, log *slog.Logger) *PhotoSweepHandler {
	if log == nil {
		log = slog.Default()
	}
	return &PhotoSweepHandler{sweeper: sweeper, log: log}
}

func (h *PhotoSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.PhotoSweepPayload
	if err := jobs.DecodePayload(t, &payload); err != nil {
		return err
	}

	removed, err := h.sweeper.SweepOlderThan(payload.OlderThan)
	if err != nil {
		return err
	}
	if removed > 0 {
		h.log.InfoContext(ctx, "orphaned staged photos removed", slog.Int("count", removed), slog.Duration("older_than", payload.OlderThan))
	}
	return nil
}

// SessionExpirer resets idle sessions.
type SessionExpirer interface {
	ExpireIdle(ctx context.Context, ttl time.Duration) int
}

// SessionExpireHandler processes session:expire.
type SessionExpireHandler struct {
	sessions SessionExpirer
	log      *slog.Logger
}

func NewSessionExpireHandler(sessions SessionExpirer, log *slog.Logger) *SessionExpireHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SessionExpireHandler{sessions: sessions, log: log}
}

func (h *SessionExpireHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.SessionExpirePayload
	if err := jobs.DecodePayload(t, &payload); err != nil {
		return err
	}

	if n := h.sessions.ExpireIdle(ctx, payload.IdleTTL); n > 0 {
		h.log.InfoContext(ctx, "idle sessions expired", slog.Int("count", n), slog.Duration("idle_ttl", payload.IdleTTL))
	}
	return nil
}
