// Package config provides configuration loading and validation utilities.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var defaults = map[string]any{
	"bot.token":                   "",
	"bot.mode":                    "polling",
	"bot.timeout":                 10 * time.Second,
	"bot.webhook_listen":          ":8443",
	"bot.webhook_url":             "",
	"bot.allowed_user_ids":        []int64{},
	"bot.admin_ids":               []int64{},
	"homebox.url":                 "",
	"homebox.username":            "",
	"homebox.password":            "",
	"homebox.token":               "",
	"homebox.timeout":             30 * time.Second,
	"homebox.retry_attempts":      3,
	"homebox.retry_delay":         2 * time.Second,
	"homebox.default_filter_mode": "unrestricted",
	"ai.api_key":                  "",
	"ai.base_url":                 "",
	"ai.default_model":            "gpt-4o",
	"ai.available_models":         []string{"gpt-4o", "gpt-4o-mini"},
	"ai.timeout":                  60 * time.Second,
	"ai.max_tokens":               500,
	"storage.driver":              "sqlite3",
	"storage.dsn":                 "data/bot.db",
	"storage.photo_dir":           "data/photos",
	"storage.max_photo_bytes":     20 << 20,
	"storage.staged_ttl":          24 * time.Hour,
	"session.idle_ttl":            time.Hour,
	"session.sweep_interval":      5 * time.Minute,
	"session.flush_interval":      30 * time.Second,
	"redis.enabled":               false,
	"redis.addr":                  "localhost:6379",
	"redis.password":              "",
	"redis.db":                    0,
	"ratelimit.per_user.limit":    30,
	"ratelimit.per_user.window":   "1m",
	"ratelimit.photos.limit":      10,
	"ratelimit.photos.window":     "1m",
	"logger.level":                "info",
	"logger.format":               "json",
	"logger.file":                 "",
	"sentry.enabled":              false,
	"sentry.dsn":                  "",
	"sentry.sample_rate":          1.0,
	"server.port":                 ":8080",
	"server.shutdown_timeout":     10 * time.Second,
	"i18n.dir":                    "internal/i18n/locales",
	"i18n.default_language":       "en",
}

// Load reads configuration from YAML files and environment variables, validates it, and returns the resulting Config.
func Load() (*Config, *viper.Viper, error) {
	// missing env files are fine outside local development
	_ = godotenv.Load(".env.local", ".env")

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetConfigFile(fmt.Sprintf("./configs/%s.yaml", env))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := decode(v, env)
	if err != nil {
		return nil, nil, err
	}

	return cfg, v, nil
}

// Watch re-decodes the configuration whenever the backing file changes and
// hands valid results to onChange. Invalid edits are logged and ignored.
func Watch(v *viper.Viper, env string, log *slog.Logger, onChange func(*Config)) {
	if v == nil || onChange == nil {
		return
	}
	if log == nil {
		log = slog.Default()
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v, env)
		if err != nil {
			log.Warn("config reload rejected", slog.String("file", e.Name), slog.Any("error", err))
			return
		}
		log.Info("config reloaded", slog.String("file", e.Name), slog.String("op", e.Op.String()))
		onChange(cfg)
	})
	v.WatchConfig()
}

func decode(v *viper.Viper, env string) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.AppEnv = env
	cfg.HomeBox.URL = strings.TrimRight(cfg.HomeBox.URL, "/")

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if cfg.HomeBox.Token == "" && (cfg.HomeBox.Username == "" || cfg.HomeBox.Password == "") {
		return nil, fmt.Errorf("validate config: homebox needs either token or username and password")
	}

	if !contains(cfg.AI.AvailableModels, cfg.AI.DefaultModel) {
		return nil, fmt.Errorf("validate config: default model %q is not in available_models", cfg.AI.DefaultModel)
	}

	// the photo sweep must never reach a photo that still belongs to a live session
	if cfg.Storage.StagedTTL > 0 && cfg.Session.IdleTTL > 0 && cfg.Storage.StagedTTL <= cfg.Session.IdleTTL {
		return nil, fmt.Errorf("validate config: storage.staged_ttl (%s) must be longer than session.idle_ttl (%s)", cfg.Storage.StagedTTL, cfg.Session.IdleTTL)
	}

	return &cfg, nil
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
