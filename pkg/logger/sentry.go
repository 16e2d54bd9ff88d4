package logger

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/Proton-105/homebox-bot/pkg/config"
)

// InitSentry configures the global Sentry hub. It is a no-op when disabled.
func InitSentry(cfg config.Config) (func(), error) {
	if !cfg.Sentry.Enabled {
		return func() {}, nil
	}

	env := cfg.Sentry.Environment
	if env == "" {
		env = cfg.AppEnv
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.Sentry.DSN,
		Environment: env,
		SampleRate:  cfg.Sentry.SampleRate,
	})
	if err != nil {
		return func() {}, fmt.Errorf("init sentry: %w", err)
	}

	return func() { sentry.Flush(2 * time.Second) }, nil
}
