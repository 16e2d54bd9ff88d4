package handlers

import (
	"context"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/homebox-bot/internal/i18n"
	"github.com/Proton-105/homebox-bot/internal/workflow"
)

// Handler processes bot commands.
type Handler func(c telebot.Context) error

// CallbackHandler processes inline callback events.
type CallbackHandler func(c telebot.Context) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

// Dispatcher feeds workflow events for the sender and shows the outcome.
type Dispatcher interface {
	Dispatch(c telebot.Context, ev workflow.Event) error
}

// Keys under which middlewares store request-scoped values in telebot.Context.
const (
	ContextKey    = "ctx"
	TranslatorKey = "translator"
)

// Ctx returns the request context stored by the logging middleware.
func Ctx(c telebot.Context) context.Context {
	if c != nil {
		if ctx, ok := c.Get(ContextKey).(context.Context); ok && ctx != nil {
			return ctx
		}
	}
	return context.Background()
}

// T returns the sender's translator stored by the locale middleware.
func T(c telebot.Context) i18n.Translator {
	if c != nil {
		if t, ok := c.Get(TranslatorKey).(i18n.Translator); ok && t != nil {
			return t
		}
	}
	return (*i18n.Manager)(nil).Translator("")
}

func respondCallback(c telebot.Context, text string, alert bool) error {
	if c == nil || c.Callback() == nil {
		return nil
	}
	return c.Respond(&telebot.CallbackResponse{
		Text:      text,
		ShowAlert: alert,
	})
}
