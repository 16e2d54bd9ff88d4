package handlers

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/homebox-bot/internal/workflow"
)

// NewEventHandler forwards a command or button that maps to a fixed workflow event.
func NewEventHandler(d Dispatcher, ev workflow.Event, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		if c == nil || c.Sender() == nil {
			log.Warn("event handler invoked without sender", slog.String("event", ev.Name()))
			return nil
		}

		_ = respondCallback(c, "", false)
		return d.Dispatch(c, ev)
	}
}

// NewSearchHandler handles "/search <query>". An empty query is answered with usage help by the workflow.
func NewSearchHandler(d Dispatcher) Handler {
	return func(c telebot.Context) error {
		if c == nil || c.Sender() == nil {
			return nil
		}
		return d.Dispatch(c, workflow.Search{Query: c.Message().Payload})
	}
}

// NewTextHandler forwards free text to the workflow.
func NewTextHandler(d Dispatcher) Handler {
	return func(c telebot.Context) error {
		if c == nil || c.Sender() == nil {
			return nil
		}
		return d.Dispatch(c, workflow.Text{Text: c.Text()})
	}
}
