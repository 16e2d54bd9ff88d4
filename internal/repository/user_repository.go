// Package repository implements SQL persistence for users, settings, location markers and counters.
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Proton-105/homebox-bot/internal/domain"
)

// UserRepository defines persistence operations for the user registry.
type UserRepository interface {
	UpsertActivity(ctx context.Context, batch []domain.UserActivity) error
	Count(ctx context.Context) (int64, error)
	CountActiveSince(ctx context.Context, since time.Time) (int64, error)
}

type userRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewUserRepository creates a new SQL-backed user repository.
func NewUserRepository(db *sqlx.DB, log *slog.Logger) UserRepository {
	return &userRepository{
		db:  db,
		log: log,
	}
}

// UpsertActivity registers unseen users and refreshes last_activity for known ones in a single transaction.
func (r *userRepository) UpsertActivity(ctx context.Context, batch []domain.UserActivity) error {
	if len(batch) == 0 {
		return nil
	}

	query := r.db.Rebind(`
		INSERT INTO users (user_id, username, first_name, last_name, created_at, last_activity)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			last_activity = excluded.last_activity
	`)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activity tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, a := range batch {
		seen := dbTime(a.SeenAt)
		if _, err := tx.ExecContext(ctx, query, a.UserID, a.Username, a.FirstName, a.LastName, seen, seen); err != nil {
			if r.log != nil {
				r.log.Error("failed to upsert user activity", slog.Int64("user_id", a.UserID), slog.Any("error", err))
			}
			return fmt.Errorf("upsert user activity: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit activity tx: %w", err)
	}

	return nil
}

// Count returns the number of registered users.
func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// CountActiveSince returns the number of users seen at or after since.
func (r *userRepository) CountActiveSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	query := r.db.Rebind(`SELECT COUNT(*) FROM users WHERE last_activity >= ?`)
	if err := r.db.GetContext(ctx, &n, query, dbTime(since)); err != nil {
		return 0, fmt.Errorf("count active users: %w", err)
	}
	return n, nil
}

// dbTime normalizes timestamps so sqlite's textual comparison orders them correctly.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
