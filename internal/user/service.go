// Package user keeps the registry of bot users and their last activity.
package user

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Proton-105/homebox-bot/internal/domain"
	"github.com/Proton-105/homebox-bot/internal/repository"
)

// Service buffers activity touches in memory and writes them in batches.
type Service struct {
	repo repository.UserRepository
	log  *slog.Logger

	mu      sync.Mutex
	pending map[int64]domain.UserActivity
}

// NewService constructs a new Service instance.
func NewService(repo repository.UserRepository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log, pending: make(map[int64]domain.UserActivity)}
}

// Touch records that the user was seen. Only the latest touch per user is kept until the next Flush.
func (s *Service) Touch(a domain.UserActivity) {
	if a.UserID == 0 {
		return
	}
	if a.SeenAt.IsZero() {
		a.SeenAt = time.Now()
	}

	s.mu.Lock()
	if prev, ok := s.pending[a.UserID]; !ok || !a.SeenAt.Before(prev.SeenAt) {
		s.pending[a.UserID] = a
	}
	s.mu.Unlock()
}

// Pending returns the number of buffered touches.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Flush writes all buffered touches. On failure they are put back for the next attempt.
func (s *Service) Flush(ctx context.Context) error {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return nil
	}
	batch := make([]domain.UserActivity, 0, len(s.pending))
	for _, a := range s.pending {
		batch = append(batch, a)
	}
	s.pending = make(map[int64]domain.UserActivity)
	s.mu.Unlock()

	if err := s.repo.UpsertActivity(ctx, batch); err != nil {
		s.logError("flush", len(batch), err)
		for _, a := range batch {
			s.Touch(a)
		}
		return err
	}

	s.log.Debug("user activity flushed", slog.Int("users", len(batch)))
	return nil
}

// Run flushes on every tick until ctx is cancelled, then flushes once more.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = s.Flush(flushCtx)
			cancel()
			return
		case <-ticker.C:
			_ = s.Flush(ctx)
		}
	}
}

// Count returns the number of registered users.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

// ActiveSince returns the number of users seen at or after since.
func (s *Service) ActiveSince(ctx context.Context, since time.Time) (int64, error) {
	return s.repo.CountActiveSince(ctx, since)
}

func (s *Service) logError(operation string, users int, err error) {
	if s == nil || s.log == nil || err == nil {
		return
	}

	s.log.Error("user service operation failed",
		slog.String("operation", operation),
		slog.Int("users", users),
		slog.Any("error", err),
	)
}
