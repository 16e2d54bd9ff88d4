package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/Proton-105/homebox-bot/internal/domain"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// SettingsRepository persists per-user settings.
type SettingsRepository interface {
	Get(ctx context.Context, userID int64) (*domain.UserSettings, error)
	CreateIfAbsent(ctx context.Context, s domain.UserSettings) error
	UpdateField(ctx context.Context, userID int64, field SettingsField, value string) error
	Distribution(ctx context.Context, field SettingsField) (map[string]int64, error)
}

// SettingsField names an updatable user_settings column.
type SettingsField string

const (
	FieldLanguage    SettingsField = "language"
	FieldGenLanguage SettingsField = "gen_language"
	FieldModel       SettingsField = "model"
	FieldFilterMode  SettingsField = "filter_mode"
)

func (f SettingsField) valid() bool {
	switch f {
	case FieldLanguage, FieldGenLanguage, FieldModel, FieldFilterMode:
		return true
	}
	return false
}

type settingsRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewSettingsRepository creates a new SQL-backed settings repository.
func NewSettingsRepository(db *sqlx.DB, log *slog.Logger) SettingsRepository {
	return &settingsRepository{db: db, log: log}
}

// Get returns ErrNotFound when the user has no settings row yet.
func (r *settingsRepository) Get(ctx context.Context, userID int64) (*domain.UserSettings, error) {
	query := r.db.Rebind(`
		SELECT user_id, language, gen_language, model, filter_mode
		FROM user_settings
		WHERE user_id = ?
	`)

	var s domain.UserSettings
	if err := r.db.GetContext(ctx, &s, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select user settings: %w", err)
	}

	return &s, nil
}

// CreateIfAbsent inserts s unless a row for the user already exists.
func (r *settingsRepository) CreateIfAbsent(ctx context.Context, s domain.UserSettings) error {
	query := r.db.Rebind(`
		INSERT INTO user_settings (user_id, language, gen_language, model, filter_mode)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING
	`)

	if _, err := r.db.ExecContext(ctx, query, s.UserID, s.Language, s.GenLanguage, s.Model, string(s.FilterMode)); err != nil {
		if r.log != nil {
			r.log.Error("failed to create user settings", slog.Int64("user_id", s.UserID), slog.Any("error", err))
		}
		return fmt.Errorf("insert user settings: %w", err)
	}

	return nil
}

// UpdateField sets one column for an existing settings row.
func (r *settingsRepository) UpdateField(ctx context.Context, userID int64, field SettingsField, value string) error {
	if !field.valid() {
		return fmt.Errorf("update user settings: unknown field %q", field)
	}

	// field is one of the fixed column names above
	query := r.db.Rebind(fmt.Sprintf(`UPDATE user_settings SET %s = ? WHERE user_id = ?`, field))

	res, err := r.db.ExecContext(ctx, query, value, userID)
	if err != nil {
		return fmt.Errorf("update user settings %s: %w", field, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return nil
}

// Distribution counts users per value of field.
func (r *settingsRepository) Distribution(ctx context.Context, field SettingsField) (map[string]int64, error) {
	if !field.valid() {
		return nil, fmt.Errorf("settings distribution: unknown field %q", field)
	}

	rows, err := r.db.QueryxContext(ctx, fmt.Sprintf(`SELECT %s, COUNT(*) FROM user_settings GROUP BY %s`, field, field))
	if err != nil {
		return nil, fmt.Errorf("settings distribution %s: %w", field, err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			value string
			count int64
		)
		if err := rows.Scan(&value, &count); err != nil {
			return nil, fmt.Errorf("scan distribution: %w", err)
		}
		out[value] = count
	}

	return out, rows.Err()
}
