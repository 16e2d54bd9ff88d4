package bot

import (
	"context"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/homebox-bot/internal/bot/handlers"
	"github.com/Proton-105/homebox-bot/internal/workflow"
)

// Engine is the workflow entry point the dispatcher drives.
type Engine interface {
	HandleEvent(ctx context.Context, userID int64, ev workflow.Event) workflow.Render
}

// Dispatcher feeds events for the sender into the engine and presents the outcome.
type Dispatcher struct {
	engine    Engine
	presenter *Presenter
	log       *slog.Logger
}

var _ handlers.Dispatcher = (*Dispatcher)(nil)

func NewDispatcher(engine Engine, presenter *Presenter, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{engine: engine, presenter: presenter, log: log}
}

// Dispatch runs ev for the sender of c.
func (d *Dispatcher) Dispatch(c telebot.Context, ev workflow.Event) error {
	if c == nil || c.Sender() == nil {
		d.log.Warn("cannot dispatch without sender information", slog.String("event", ev.Name()))
		return nil
	}

	r := d.engine.HandleEvent(handlers.Ctx(c), c.Sender().ID, ev)
	d.log.Debug("event handled",
		slog.Int64("user_id", c.Sender().ID),
		slog.String("event", ev.Name()),
		slog.String("state", string(r.State)),
		slog.String("notice", string(r.Notice)),
	)

	return d.presenter.Present(c, r)
}
