package middleware

import (
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/homebox-bot/internal/bot/handlers"
	"github.com/Proton-105/homebox-bot/internal/bot/keyboard"
	"github.com/Proton-105/homebox-bot/pkg/metrics"
)

// Metrics records handler latency and outcome per update kind.
func Metrics(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(c telebot.Context) error {
		start := time.Now()
		err := next(c)

		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.RecordCommand(UpdateLabel(c), status, time.Since(start))

		return err
	}
}

// UpdateLabel is a low-cardinality name for the update: the command, the callback
// unique, "photo", "document" or "text".
func UpdateLabel(c telebot.Context) string {
	if c == nil {
		return "unknown"
	}

	if cb := c.Callback(); cb != nil {
		unique, _, err := keyboard.DecodeCallback(cb.Data)
		if err != nil {
			return "callback"
		}
		return "cb_" + unique
	}

	msg := c.Message()
	switch {
	case msg == nil:
		return "unknown"
	case msg.Photo != nil:
		return "photo"
	case msg.Document != nil:
		return "document"
	}

	if text := msg.Text; strings.HasPrefix(text, "/") {
		cmd := strings.Fields(text)[0]
		if at := strings.IndexByte(cmd, '@'); at > 0 {
			cmd = cmd[:at]
		}
		return cmd
	}

	return "text"
}
