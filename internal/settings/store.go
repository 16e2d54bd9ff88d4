// Package settings owns the durable per-user settings, the location marker set and usage statistics.
package settings

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Proton-105/homebox-bot/internal/domain"
	apperrors "github.com/Proton-105/homebox-bot/internal/errors"
	"github.com/Proton-105/homebox-bot/internal/repository"
	"github.com/Proton-105/homebox-bot/internal/user"
	"github.com/Proton-105/homebox-bot/internal/usercache"
)

const (
	counterItemsCreated = "items_created"
	counterErrors       = "errors"
	counterRequests     = "requests"
	counterErrorPrefix  = "errors:"
)

// Defaults are applied to users without a settings row and to stored values that are no longer valid.
type Defaults struct {
	Language    string
	GenLanguage string
	Model       string
	FilterMode  domain.FilterMode
	Models      []string
}

// Store is safe for concurrent use. Every mutating call is a single atomic SQL write.
type Store struct {
	settings repository.SettingsRepository
	markers  repository.MarkerRepository
	stats    repository.StatsRepository
	users    *user.Service
	cache    *usercache.Cache
	defaults Defaults
	log      *slog.Logger
	now      func() time.Time

	mu        sync.RWMutex
	startedAt time.Time
}

// NewStore wires the repositories over db. cache may be nil.
func NewStore(db *sqlx.DB, cache *usercache.Cache, defaults Defaults, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	if !domain.SupportedLanguage(defaults.Language) {
		defaults.Language = "en"
	}
	if !domain.SupportedLanguage(defaults.GenLanguage) {
		defaults.GenLanguage = domain.DefaultGenLanguage
	}
	if !defaults.FilterMode.Valid() {
		defaults.FilterMode = domain.FilterUnrestricted
	}

	return &Store{
		settings:  repository.NewSettingsRepository(db, log),
		markers:   repository.NewMarkerRepository(db, log),
		stats:     repository.NewStatsRepository(db, log),
		users:     user.NewService(repository.NewUserRepository(db, log), log),
		cache:     cache,
		defaults:  defaults,
		log:       log,
		now:       time.Now,
		startedAt: time.Now(),
	}
}

// Models returns the allow-listed model identifiers.
func (s *Store) Models() []string {
	return s.defaults.Models
}

// GetSettings returns the user's settings, creating the default record on first access.
// Storage failures are logged and answered with defaults.
func (s *Store) GetSettings(ctx context.Context, userID int64) domain.UserSettings {
	if cached, err := s.cache.Get(ctx, userID); err == nil && cached != nil {
		return s.normalize(*cached)
	} else if err != nil {
		s.log.Warn("settings cache read failed", slog.Int64("user_id", userID), slog.Any("error", err))
	}

	stored, err := s.settings.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		if err = s.settings.CreateIfAbsent(ctx, s.defaultsFor(userID)); err == nil {
			stored, err = s.settings.Get(ctx, userID)
		}
	}
	if err != nil {
		s.log.Error("settings read failed, using defaults", slog.Int64("user_id", userID), slog.Any("error", err))
		return s.defaultsFor(userID)
	}

	result := s.normalize(*stored)
	if err := s.cache.Set(ctx, result); err != nil {
		s.log.Warn("settings cache write failed", slog.Int64("user_id", userID), slog.Any("error", err))
	}

	return result
}

// SetLanguage changes the interface language.
func (s *Store) SetLanguage(ctx context.Context, userID int64, lang string) error {
	if !domain.SupportedLanguage(lang) {
		return apperrors.NewConfigurationError("language", lang)
	}
	return s.update(ctx, userID, repository.FieldLanguage, lang)
}

// SetGenLanguage changes the language of generated names and descriptions.
func (s *Store) SetGenLanguage(ctx context.Context, userID int64, lang string) error {
	if !domain.SupportedLanguage(lang) {
		return apperrors.NewConfigurationError("gen_language", lang)
	}
	return s.update(ctx, userID, repository.FieldGenLanguage, lang)
}

// SetModel changes the AI model. Models outside the allow-list are rejected and the prior value kept.
func (s *Store) SetModel(ctx context.Context, userID int64, model string) error {
	if !s.modelAllowed(model) {
		return apperrors.NewConfigurationError("model", model)
	}
	return s.update(ctx, userID, repository.FieldModel, model)
}

// SetFilterMode changes how candidate locations are filtered.
func (s *Store) SetFilterMode(ctx context.Context, userID int64, mode domain.FilterMode) error {
	if !mode.Valid() {
		return apperrors.NewConfigurationError("filter_mode", string(mode))
	}
	return s.update(ctx, userID, repository.FieldFilterMode, string(mode))
}

func (s *Store) update(ctx context.Context, userID int64, field repository.SettingsField, value string) error {
	// make sure the row exists so the update has something to hit
	s.GetSettings(ctx, userID)

	if err := s.settings.UpdateField(ctx, userID, field, value); err != nil {
		return apperrors.NewDatabaseError(err)
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.log.Warn("settings cache invalidate failed", slog.Int64("user_id", userID), slog.Any("error", err))
	}

	s.log.Info("user settings updated", slog.Int64("user_id", userID), slog.String("field", string(field)), slog.String("value", value))
	return nil
}

// GetMarkerSet returns location id -> marked. Absent ids are unmarked.
func (s *Store) GetMarkerSet(ctx context.Context) (map[string]bool, error) {
	markers, err := s.markers.All(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return markers, nil
}

// ToggleMarker flips one location's marker and returns its new value.
func (s *Store) ToggleMarker(ctx context.Context, locationID string) (bool, error) {
	marked, err := s.markers.Toggle(ctx, locationID)
	if err != nil {
		return false, apperrors.NewDatabaseError(err)
	}
	return marked, nil
}

// SetMarkers marks or unmarks every listed location in one transaction.
func (s *Store) SetMarkers(ctx context.Context, locationIDs []string, marked bool) error {
	if err := s.markers.SetMany(ctx, locationIDs, marked); err != nil {
		return apperrors.NewDatabaseError(err)
	}
	return nil
}

// RecordItemCreated counts one created inventory item.
func (s *Store) RecordItemCreated(ctx context.Context) {
	s.increment(ctx, counterItemsCreated)
}

// RecordError counts one user-facing error, also under errors:<context>.
func (s *Store) RecordError(ctx context.Context, errContext string) {
	s.increment(ctx, counterErrors)
	if errContext != "" {
		s.increment(ctx, counterErrorPrefix+errContext)
	}
}

// RecordRequest counts one handled update.
func (s *Store) RecordRequest(ctx context.Context) {
	s.increment(ctx, counterRequests)
}

func (s *Store) increment(ctx context.Context, key string) {
	if err := s.stats.Increment(ctx, key); err != nil {
		s.log.Warn("counter not recorded", slog.String("key", key), slog.Any("error", err))
	}
}

// Touch buffers a user activity record until the next Flush.
func (s *Store) Touch(a domain.UserActivity) {
	s.users.Touch(a)
}

// Flush writes buffered activity.
func (s *Store) Flush(ctx context.Context) error {
	return s.users.Flush(ctx)
}

// RunFlusher flushes buffered activity every interval until ctx ends.
func (s *Store) RunFlusher(ctx context.Context, interval time.Duration) {
	s.users.Run(ctx, interval)
}

// GetStats returns a snapshot of usage statistics.
func (s *Store) GetStats(ctx context.Context) (domain.Stats, error) {
	if err := s.users.Flush(ctx); err != nil {
		s.log.Warn("activity flush before stats failed", slog.Any("error", err))
	}

	counters, err := s.stats.All(ctx)
	if err != nil {
		return domain.Stats{}, apperrors.NewDatabaseError(err)
	}

	now := s.now()
	stats := domain.Stats{
		StartedAt:    s.StartedAt(),
		ItemsCreated: counters[counterItemsCreated],
		Errors:       counters[counterErrors],
		Requests:     counters[counterRequests],
	}

	if stats.UsersRegistered, err = s.users.Count(ctx); err != nil {
		return domain.Stats{}, apperrors.NewDatabaseError(err)
	}
	if stats.Active24h, err = s.users.ActiveSince(ctx, now.Add(-24*time.Hour)); err != nil {
		return domain.Stats{}, apperrors.NewDatabaseError(err)
	}
	if stats.Active7d, err = s.users.ActiveSince(ctx, now.Add(-7*24*time.Hour)); err != nil {
		return domain.Stats{}, apperrors.NewDatabaseError(err)
	}
	if stats.Languages, err = s.settings.Distribution(ctx, repository.FieldLanguage); err != nil {
		return domain.Stats{}, apperrors.NewDatabaseError(err)
	}
	if stats.Models, err = s.settings.Distribution(ctx, repository.FieldModel); err != nil {
		return domain.Stats{}, apperrors.NewDatabaseError(err)
	}

	return stats, nil
}

// ResetStats zeroes the counters and moves the uptime origin to now.
func (s *Store) ResetStats(ctx context.Context) error {
	if err := s.stats.Reset(ctx); err != nil {
		return apperrors.NewDatabaseError(err)
	}

	s.mu.Lock()
	s.startedAt = s.now()
	s.mu.Unlock()

	s.log.Info("usage statistics reset")
	return nil
}

// StartedAt is the uptime origin.
func (s *Store) StartedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startedAt
}

// Close flushes pending writes.
func (s *Store) Close(ctx context.Context) error {
	return s.Flush(ctx)
}

func (s *Store) defaultsFor(userID int64) domain.UserSettings {
	return domain.UserSettings{
		UserID:      userID,
		Language:    s.defaults.Language,
		GenLanguage: s.defaults.GenLanguage,
		Model:       s.defaults.Model,
		FilterMode:  s.defaults.FilterMode,
	}
}

func (s *Store) normalize(in domain.UserSettings) domain.UserSettings {
	if !domain.SupportedLanguage(in.Language) {
		in.Language = s.defaults.Language
	}
	if !domain.SupportedLanguage(in.GenLanguage) {
		in.GenLanguage = s.defaults.GenLanguage
	}
	if !s.modelAllowed(in.Model) {
		in.Model = s.defaults.Model
	}
	if !in.FilterMode.Valid() {
		in.FilterMode = s.defaults.FilterMode
	}
	return in
}

func (s *Store) modelAllowed(model string) bool {
	for _, m := range s.defaults.Models {
		if m == model {
			return true
		}
	}
	return false
}
