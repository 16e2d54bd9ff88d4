package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// StatsRepository persists named monotonically increasing counters.
type StatsRepository interface {
	Increment(ctx context.Context, key string) error
	All(ctx context.Context) (map[string]int64, error)
	Reset(ctx context.Context) error
}

type statsRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewStatsRepository creates a new SQL-backed counter repository.
func NewStatsRepository(db *sqlx.DB, log *slog.Logger) StatsRepository {
	return &statsRepository{db: db, log: log}
}

// Increment adds one to key, creating it at 1.
func (r *statsRepository) Increment(ctx context.Context, key string) error {
	query := r.db.Rebind(`
		INSERT INTO bot_stats (stat_key, stat_value)
		VALUES (?, 1)
		ON CONFLICT (stat_key) DO UPDATE SET stat_value = bot_stats.stat_value + 1
	`)

	if _, err := r.db.ExecContext(ctx, query, key); err != nil {
		if r.log != nil {
			r.log.Error("failed to increment counter", slog.String("key", key), slog.Any("error", err))
		}
		return fmt.Errorf("increment %s: %w", key, err)
	}

	return nil
}

// All returns every counter.
func (r *statsRepository) All(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT stat_key, stat_value FROM bot_stats`)
	if err != nil {
		return nil, fmt.Errorf("select counters: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			key   string
			value int64
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan counter: %w", err)
		}
		out[key] = value
	}

	return out, rows.Err()
}

// Reset deletes every counter.
func (r *statsRepository) Reset(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM bot_stats`); err != nil {
		return fmt.Errorf("reset counters: %w", err)
	}
	return nil
}
