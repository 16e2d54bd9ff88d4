package config

import (
	"time"

	"github.com/Proton-105/homebox-bot/pkg/redis"
)

// Config holds runtime configuration for the HomeBox bot.
type Config struct {
	AppEnv    string          `mapstructure:"app_env"`
	Bot       BotConfig       `mapstructure:"bot" validate:"required"`
	HomeBox   HomeBoxConfig   `mapstructure:"homebox" validate:"required"`
	AI        AIConfig        `mapstructure:"ai" validate:"required"`
	Storage   StorageConfig   `mapstructure:"storage" validate:"required"`
	Session   SessionConfig   `mapstructure:"session"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Server    ServerConfig    `mapstructure:"server"`
	I18n      I18nConfig      `mapstructure:"i18n"`
}

// BotConfig configures the Telegram side.
type BotConfig struct {
	Token          string        `mapstructure:"token" validate:"required"`
	Mode           string        `mapstructure:"mode" validate:"omitempty,oneof=polling webhook"`
	Timeout        time.Duration `mapstructure:"timeout"`
	WebhookListen  string        `mapstructure:"webhook_listen"`
	WebhookURL     string        `mapstructure:"webhook_url" validate:"required_if=Mode webhook,omitempty,url"`
	AllowedUserIDs []int64       `mapstructure:"allowed_user_ids"`
	AdminIDs       []int64       `mapstructure:"admin_ids"`
}

// HomeBoxConfig configures the inventory API client.
type HomeBoxConfig struct {
	URL               string        `mapstructure:"url" validate:"required,url"`
	Username          string        `mapstructure:"username"`
	Password          string        `mapstructure:"password"`
	Token             string        `mapstructure:"token"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RetryAttempts     int           `mapstructure:"retry_attempts" validate:"min=0"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
	DefaultFilterMode string        `mapstructure:"default_filter_mode" validate:"omitempty,oneof=unrestricted marker"`
}

// AIConfig configures the OpenAI-compatible vision endpoint.
type AIConfig struct {
	APIKey          string        `mapstructure:"api_key" validate:"required"`
	BaseURL         string        `mapstructure:"base_url" validate:"omitempty,url"`
	DefaultModel    string        `mapstructure:"default_model" validate:"required"`
	AvailableModels []string      `mapstructure:"available_models" validate:"required,min=1"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxTokens       int64         `mapstructure:"max_tokens"`
}

// StorageConfig configures persistence and photo staging.
type StorageConfig struct {
	Driver        string        `mapstructure:"driver" validate:"required,oneof=sqlite3 postgres"`
	DSN           string        `mapstructure:"dsn" validate:"required"`
	PhotoDir      string        `mapstructure:"photo_dir" validate:"required"`
	MaxPhotoBytes int64         `mapstructure:"max_photo_bytes" validate:"min=0"`
	StagedTTL     time.Duration `mapstructure:"staged_ttl"`
}

// SessionConfig controls in-memory session housekeeping.
type SessionConfig struct {
	IdleTTL       time.Duration `mapstructure:"idle_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// RedisConfig toggles the optional Redis-backed components.
type RedisConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	redis.Config `mapstructure:",squash"`
}

// RateLimitRule is a "limit per window" pair, window in Go duration syntax.
type RateLimitRule struct {
	Limit  int    `mapstructure:"limit"`
	Window string `mapstructure:"window"`
}

// RateLimitConfig lists the configured limits.
type RateLimitConfig struct {
	Whitelist []int64       `mapstructure:"whitelist"`
	Global    RateLimitRule `mapstructure:"global"`
	PerUser   RateLimitRule `mapstructure:"per_user"`
	Photos    RateLimitRule `mapstructure:"photos"`
}

// LoggerConfig configures pkg/logger.
type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"omitempty,oneof=json text"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// ServerConfig configures the ops HTTP server.
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// I18nConfig points at the translation catalogs.
type I18nConfig struct {
	Dir             string `mapstructure:"dir"`
	DefaultLanguage string `mapstructure:"default_language"`
}

// IsAllowed reports whether the Telegram user may talk to the bot.
func (c BotConfig) IsAllowed(userID int64) bool {
	if len(c.AllowedUserIDs) == 0 {
		return true
	}
	for _, id := range c.AllowedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user may run administrative commands.
func (c BotConfig) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}
