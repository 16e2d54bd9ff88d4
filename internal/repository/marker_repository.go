package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// MarkerRepository persists the location marker set.
type MarkerRepository interface {
	All(ctx context.Context) (map[string]bool, error)
	Toggle(ctx context.Context, locationID string) (bool, error)
	SetMany(ctx context.Context, locationIDs []string, marked bool) error
}

type markerRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	now func() time.Time
}

// NewMarkerRepository creates a new SQL-backed marker repository.
func NewMarkerRepository(db *sqlx.DB, log *slog.Logger) MarkerRepository {
	return &markerRepository{db: db, log: log, now: time.Now}
}

// All returns every stored marker, including unmarked entries.
func (r *markerRepository) All(ctx context.Context) (map[string]bool, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT location_id, marked FROM location_markers`)
	if err != nil {
		return nil, fmt.Errorf("select markers: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var (
			id     string
			marked bool
		)
		if err := rows.Scan(&id, &marked); err != nil {
			return nil, fmt.Errorf("scan marker: %w", err)
		}
		out[id] = marked
	}

	return out, rows.Err()
}

// Toggle flips the marker in one statement and returns the new value.
// An absent location counts as unmarked, so its first toggle marks it.
func (r *markerRepository) Toggle(ctx context.Context, locationID string) (bool, error) {
	query := r.db.Rebind(`
		INSERT INTO location_markers (location_id, marked, updated_at)
		VALUES (?, TRUE, ?)
		ON CONFLICT (location_id) DO UPDATE SET
			marked = NOT location_markers.marked,
			updated_at = excluded.updated_at
		RETURNING marked
	`)

	var marked bool
	if err := r.db.GetContext(ctx, &marked, query, locationID, dbTime(r.now())); err != nil {
		if r.log != nil {
			r.log.Error("failed to toggle marker", slog.String("location_id", locationID), slog.Any("error", err))
		}
		return false, fmt.Errorf("toggle marker: %w", err)
	}

	return marked, nil
}

// SetMany writes the same value for every listed location atomically.
func (r *markerRepository) SetMany(ctx context.Context, locationIDs []string, marked bool) error {
	if len(locationIDs) == 0 {
		return nil
	}

	query := r.db.Rebind(`
		INSERT INTO location_markers (location_id, marked, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (location_id) DO UPDATE SET
			marked = excluded.marked,
			updated_at = excluded.updated_at
	`)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin markers tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := dbTime(r.now())
	for _, id := range locationIDs {
		if _, err := tx.ExecContext(ctx, query, id, marked, now); err != nil {
			return fmt.Errorf("set marker %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit markers tx: %w", err)
	}

	return nil
}
