// Package bot connects Telegram to the workflow engine: routing, middlewares
// and rendering of engine output.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/homebox-bot/internal/bot/handlers"
	"github.com/Proton-105/homebox-bot/internal/bot/keyboard"
	errors "github.com/Proton-105/homebox-bot/internal/errors"
	"github.com/Proton-105/homebox-bot/internal/i18n"
	"github.com/Proton-105/homebox-bot/internal/idempotency"
	"github.com/Proton-105/homebox-bot/internal/middleware"
	"github.com/Proton-105/homebox-bot/internal/workflow"
	"github.com/Proton-105/homebox-bot/pkg/config"
)

// Store is everything the bot layer needs from the settings store.
type Store interface {
	handlers.SettingsStore
	handlers.StatsSource
	ActivityRecorder
}

// Deps are the services the bot routes updates to.
type Deps struct {
	Engine      Engine
	Presenter   *Presenter
	Store       Store
	I18n        *i18n.Manager
	Idempotency idempotency.Manager
	RateLimit   *middleware.RateLimitMiddleware
}

// Bot wraps telebot.Bot with application dependencies required for handling updates.
type Bot struct {
	telebot    *telebot.Bot
	log        *slog.Logger
	cfg        config.Config
	deps       Deps
	router     *Router
	dispatcher *Dispatcher
	errHandler *errors.Handler
}

// NewTelebot creates the Telegram client in polling or webhook mode.
func NewTelebot(cfg config.BotConfig, log *slog.Logger) (*telebot.Bot, error) {
	settings := telebot.Settings{
		Token: cfg.Token,
		OnError: func(err error, c telebot.Context) {
			log.Error("telebot error", slog.Any("error", err))
		},
	}

	if cfg.Mode == "webhook" {
		settings.Poller = &telebot.Webhook{
			Listen:   cfg.WebhookListen,
			Endpoint: &telebot.WebhookEndpoint{PublicURL: cfg.WebhookURL},
		}
	} else {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		settings.Poller = &telebot.LongPoller{Timeout: timeout}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}
	return tb, nil
}

// New wires routes and middlewares onto tb.
func New(tb *telebot.Bot, cfg config.Config, log *slog.Logger, deps Deps) *Bot {
	if log == nil {
		log = slog.Default()
	}

	b := &Bot{
		telebot:    tb,
		log:        log,
		cfg:        cfg,
		deps:       deps,
		router:     NewRouter(log),
		dispatcher: NewDispatcher(deps.Engine, deps.Presenter, log),
		errHandler: errors.NewHandler(log, cfg.Sentry.Enabled),
	}

	b.setupRouter()
	b.registerTelebotHandlers()

	return b
}

// Start runs the telegram bot event loop until Stop is called.
func (b *Bot) Start() {
	if b.telebot == nil {
		return
	}

	t := b.deps.I18n.Translator(b.cfg.I18n.DefaultLanguage)
	if err := b.telebot.SetCommands(CommandList(t)); err != nil {
		b.log.Warn("failed to publish command list", slog.Any("error", err))
	}

	b.telebot.Start()
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	if b.telebot == nil {
		return
	}

	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()
}

// Run starts the bot and stops it when ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Start()
	}()

	select {
	case <-ctx.Done():
		b.Stop()
		<-done
		return nil
	case <-done:
		return fmt.Errorf("telegram bot stopped unexpectedly")
	}
}

// Telebot exposes the underlying telebot.Bot instance for integrations such as health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

func (b *Bot) setupRouter() {
	d := b.dispatcher
	r := b.router

	r.Use(RecoveryMiddleware(b.log, b.errHandler))
	r.Use(LoggingMiddleware(b.log))
	r.Use(LocaleMiddleware(b.deps.Store, b.deps.I18n))
	r.Use(ErrorHandlingMiddleware(b.errHandler))
	r.Use(AccessMiddleware(b.cfg.Bot.IsAllowed, b.log))
	r.Use(middleware.Idempotency(b.deps.Idempotency, b.log))
	if b.deps.RateLimit != nil {
		r.Use(b.deps.RateLimit.Handle)
	}
	r.Use(ActivityMiddleware(b.deps.Store))
	r.Use(middleware.Metrics)

	start := handlers.NewEventHandler(d, workflow.Start{}, b.log)
	r.RegisterCommand(CommandStart, start)
	r.RegisterCommand(CommandNew, start)
	r.RegisterCommand(CommandCancel, handlers.NewEventHandler(d, workflow.Cancel{}, b.log))
	r.RegisterCommand(CommandLocations, handlers.NewEventHandler(d, workflow.OpenLocations{}, b.log))
	r.RegisterCommand(CommandRecent, handlers.NewEventHandler(d, workflow.Recent{}, b.log))
	r.RegisterCommand(CommandSearch, handlers.NewSearchHandler(d))
	r.RegisterCommand(CommandHelp, handlers.NewHelpHandler())
	r.RegisterCommand(CommandStats, handlers.NewStatsHandler(b.deps.Store, b.cfg.Bot.IsAdmin, b.log))

	settings := handlers.NewSettings(b.deps.Store, b.deps.I18n, b.log)
	r.RegisterCommand(CommandSettings, settings.Command)
	for _, unique := range []string{
		keyboard.UniqueSettingsMenu,
		keyboard.UniqueSetLanguage,
		keyboard.UniqueSetGenLanguage,
		keyboard.UniqueSetModel,
		keyboard.UniqueSetFilter,
	} {
		r.RegisterCallback(unique, settings.Callback)
	}

	flow := handlers.NewFlowCallbackHandler(d)
	for _, unique := range []string{
		keyboard.UniqueAction,
		keyboard.UniquePage,
		keyboard.UniquePickLocation,
		keyboard.UniqueToggleMarker,
		keyboard.UniqueDescribe,
		keyboard.UniqueItem,
	} {
		r.RegisterCallback(unique, flow)
	}

	if b.deps.I18n != nil {
		r.RegisterMenuTexts(MenuTexts(b.deps.I18n))
	}

	maxBytes := b.cfg.Storage.MaxPhotoBytes
	r.HandlePhoto(handlers.NewPhotoHandler(d, b.telebot, maxBytes, b.log))
	r.HandleDocument(handlers.NewDocumentHandler(d, b.telebot, maxBytes, b.log))
	r.SetDefault(handlers.NewTextHandler(d))
}

func (b *Bot) registerTelebotHandlers() {
	if b.telebot == nil {
		return
	}

	for _, endpoint := range []string{telebot.OnText, telebot.OnCallback, telebot.OnPhoto, telebot.OnDocument} {
		b.telebot.Handle(endpoint, b.router.Route)
	}
}
