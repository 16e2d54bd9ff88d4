package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/homebox-bot/internal/bot/handlers"
	"github.com/Proton-105/homebox-bot/internal/domain"
	errors "github.com/Proton-105/homebox-bot/internal/errors"
	"github.com/Proton-105/homebox-bot/pkg/logger"
)

// ActivityRecorder counts requests and remembers who used the bot.
type ActivityRecorder interface {
	Touch(a domain.UserActivity)
	RecordRequest(ctx context.Context)
}

// RecoveryMiddleware catches panics, reports them via the centralized handler, and notifies the user.
func RecoveryMiddleware(log *slog.Logger, errHandler *errors.Handler) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered in handler", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))

					if errHandler != nil {
						_, _ = errHandler.Handle(handlers.Ctx(c), errors.NewDatabaseError(fmt.Errorf("panic recovered: %v", r)))
					}

					if c != nil {
						if sendErr := c.Send(handlers.T(c).T("errors.default")); sendErr != nil {
							log.Error("failed to notify user about panic", slog.Any("error", sendErr))
						}
					}

					err = nil
				}
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware reports handler failures and tells the user in their language.
func ErrorHandlingMiddleware(errHandler *errors.Handler) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			fallback := ""
			if errHandler != nil {
				fallback, _ = errHandler.Handle(handlers.Ctx(c), err)
			}

			t := handlers.T(c)
			key := "errors.default"
			if code := errors.CodeOf(err); code != "" {
				key = "errors." + code
			}
			msg := t.T(key)
			if msg == key {
				msg = fallback
			}
			if msg == "" {
				msg = t.T("errors.default")
			}

			if c.Callback() != nil {
				_ = c.Respond(&telebot.CallbackResponse{Text: msg, ShowAlert: true})
				return nil
			}
			_ = c.Send(msg)
			return nil
		}
	}
}

// LoggingMiddleware attaches a correlation id to the update and logs its handling.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			start := time.Now()
			ctx := logger.WithCorrelationID(context.Background())
			c.Set(handlers.ContextKey, ctx)

			userID := int64(0)
			if c.Sender() != nil {
				userID = c.Sender().ID
			}

			attrs := []any{
				slog.Int64("user_id", userID),
				slog.String("update", updateKind(c)),
				slog.String("correlation_id", logger.CorrelationIDFromContext(ctx)),
			}

			log.Debug("handling update", attrs...)
			err := next(c)
			log.Info("handled update", append(attrs,
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)...)

			return err
		}
	}
}

// LocaleMiddleware stores the sender's translator for the handlers.
func LocaleMiddleware(languages LanguageSource, translators handlers.TranslatorSource) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			lang := ""
			if c.Sender() != nil && languages != nil {
				lang = languages.GetSettings(handlers.Ctx(c), c.Sender().ID).Language
			}
			c.Set(handlers.TranslatorKey, translators.Translator(lang))
			return next(c)
		}
	}
}

// AccessMiddleware turns away users outside the allow-list.
func AccessMiddleware(isAllowed func(int64) bool, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			if c.Sender() == nil {
				return nil
			}
			if isAllowed == nil || isAllowed(c.Sender().ID) {
				return next(c)
			}

			log.Warn("access denied", slog.Int64("user_id", c.Sender().ID), slog.String("username", c.Sender().Username))
			msg := handlers.T(c).T("errors.access_denied")
			if c.Callback() != nil {
				return c.Respond(&telebot.CallbackResponse{Text: msg, ShowAlert: true})
			}
			return c.Send(msg)
		}
	}
}

// ActivityMiddleware counts the request and buffers a "last seen" record.
func ActivityMiddleware(recorder ActivityRecorder) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			if recorder != nil && c.Sender() != nil {
				sender := c.Sender()
				recorder.Touch(domain.UserActivity{
					UserID:    sender.ID,
					Username:  sender.Username,
					FirstName: sender.FirstName,
					LastName:  sender.LastName,
					SeenAt:    time.Now().UTC(),
				})
				recorder.RecordRequest(handlers.Ctx(c))
			}

			return next(c)
		}
	}
}

func updateKind(c telebot.Context) string {
	if cb := c.Callback(); cb != nil {
		return "callback"
	}
	if msg := c.Message(); msg != nil {
		switch {
		case msg.Photo != nil:
			return "photo"
		case msg.Document != nil:
			return "document"
		case len(msg.Text) > 0 && msg.Text[0] == '/':
			return "command"
		}
	}
	return "text"
}
