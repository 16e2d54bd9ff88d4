// Package logger builds the structured slog logger shared by the whole bot.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	slogsentry "github.com/samber/slog-sentry/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Proton-105/homebox-bot/pkg/config"
)

// Logger is a slog.Logger with a runtime-adjustable level.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
	out   io.Closer
}

// New creates the application logger: masked JSON or text output to stdout or
// a rotating file, plus error-level forwarding to Sentry when enabled.
func New(cfg config.Config) *Logger {
	level := new(slog.LevelVar)
	level.Set(ParseLevel(cfg.Logger.Level))

	var (
		out    io.Writer = os.Stdout
		closer io.Closer
	)
	if cfg.Logger.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.Logger.File,
			MaxSize:    orDefault(cfg.Logger.MaxSizeMB, 50),
			MaxBackups: orDefault(cfg.Logger.MaxBackups, 5),
			MaxAge:     orDefault(cfg.Logger.MaxAgeDays, 14),
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotating)
		closer = rotating
	}

	opts := &slog.HandlerOptions{Level: level}
	var base slog.Handler
	if strings.EqualFold(cfg.Logger.Format, "text") {
		base = slog.NewTextHandler(out, opts)
	} else {
		base = slog.NewJSONHandler(out, opts)
	}

	handler := slog.Handler(NewMaskingHandler(base))
	if cfg.Sentry.Enabled {
		sentryHandler := slogsentry.Option{Level: slog.LevelError, AddSource: true}.NewSentryHandler()
		handler = newFanout(handler, NewMaskingHandler(sentryHandler))
	}

	l := slog.New(handler).With(slog.String("env", cfg.AppEnv))

	return &Logger{Logger: l, level: level, out: closer}
}

// SetLevel changes the minimum level at runtime.
func (l *Logger) SetLevel(level string) {
	if l == nil || l.level == nil {
		return
	}
	l.level.Set(ParseLevel(level))
}

// Level returns the current minimum level.
func (l *Logger) Level() slog.Level {
	if l == nil || l.level == nil {
		return slog.LevelInfo
	}
	return l.level.Level()
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.out == nil {
		return nil
	}
	return l.out.Close()
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func orDefault(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}
