package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/homebox-bot/internal/bot/handlers"
	"github.com/Proton-105/homebox-bot/internal/idempotency"
)

// Idempotency drops updates that were already handled. A nil manager disables it.
func Idempotency(manager idempotency.Manager, log *slog.Logger) handlers.Middleware {
	if manager == nil {
		return func(next handlers.Handler) handlers.Handler { return next }
	}
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			key := UpdateKey(c)
			if key == "" {
				return next(c)
			}

			err := manager.Execute(handlers.Ctx(c), key, func(context.Context) error {
				return next(c)
			})
			if errors.Is(err, idempotency.ErrDuplicate) || errors.Is(err, idempotency.ErrInProgress) {
				log.Debug("duplicate update dropped", slog.String("key", key), slog.Any("reason", err))
				return nil
			}
			return err
		}
	}
}

// UpdateKey identifies the update behind c, or "" if it cannot be identified.
func UpdateKey(c telebot.Context) string {
	if c == nil {
		return ""
	}

	if cb := c.Callback(); cb != nil {
		if cb.ID != "" {
			return "cb:" + cb.ID
		}
		if cb.Message != nil && cb.Message.Chat != nil {
			return idempotency.GenerateKey("cb-msg", cb.Message.Chat.ID, cb.Message.ID, cb.Data)
		}
		return ""
	}

	if msg := c.Message(); msg != nil && msg.ID != 0 {
		chatID := int64(0)
		if msg.Chat != nil {
			chatID = msg.Chat.ID
		}
		return fmt.Sprintf("msg:%d:%d", chatID, msg.ID)
	}

	return ""
}
