package bot

import (
	"log/slog"
	"strings"
	"sync"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/homebox-bot/internal/bot/handlers"
	"github.com/Proton-105/homebox-bot/internal/bot/keyboard"
)

// Router dispatches commands, callbacks, uploads and free text.
type Router struct {
	mu             sync.RWMutex
	commands       map[string]handlers.Handler
	callbacks      map[string]handlers.CallbackHandler
	menuTexts      map[string]string
	photoHandler   handlers.Handler
	docHandler     handlers.Handler
	defaultHandler handlers.Handler
	middlewares    []handlers.Middleware
	log            *slog.Logger
}

// NewRouter builds a Router with empty registries.
func NewRouter(log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}

	return &Router{
		commands:    make(map[string]handlers.Handler),
		callbacks:   make(map[string]handlers.CallbackHandler),
		menuTexts:   make(map[string]string),
		middlewares: make([]handlers.Middleware, 0),
		log:         log,
	}
}

// RegisterCommand registers a handler for a bot command.
func (r *Router) RegisterCommand(cmd string, h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[cmd] = h
}

// RegisterCallback registers a handler for a callback unique.
func (r *Router) RegisterCallback(unique string, h handlers.CallbackHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[unique] = h
}

// RegisterMenuTexts makes reply keyboard labels behave like their commands.
func (r *Router) RegisterMenuTexts(texts map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for text, cmd := range texts {
		r.menuTexts[text] = cmd
	}
}

// HandlePhoto sets the handler for photo messages.
func (r *Router) HandlePhoto(h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.photoHandler = h
}

// HandleDocument sets the handler for document messages.
func (r *Router) HandleDocument(h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docHandler = h
}

// Use appends a middleware to the chain.
func (r *Router) Use(mw handlers.Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, mw)
}

// SetDefault sets the fallback handler for text that is neither a command nor a menu label.
func (r *Router) SetDefault(h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultHandler = h
}

// Route directs the incoming update to the appropriate handler.
func (r *Router) Route(c telebot.Context) error {
	if c == nil {
		return nil
	}

	if callback := c.Callback(); callback != nil {
		return r.handleCallback(c, callback.Data)
	}

	return r.handleMessage(c)
}

func (r *Router) handleCallback(c telebot.Context, data string) error {
	unique, _, err := keyboard.DecodeCallback(data)
	if err != nil {
		return nil
	}

	handler := r.getCallbackHandler(unique)
	if handler == nil {
		r.log.Info("no callback handler found", slog.String("data", data))
		return c.Respond()
	}

	return r.executeHandler(handlers.Handler(handler), c)
}

func (r *Router) handleMessage(c telebot.Context) error {
	msg := c.Message()
	if msg == nil {
		return nil
	}

	switch {
	case msg.Photo != nil:
		return r.executeHandler(r.get(&r.photoHandler), c)
	case msg.Document != nil:
		return r.executeHandler(r.get(&r.docHandler), c)
	}

	text := strings.TrimSpace(msg.Text)
	if strings.HasPrefix(text, "/") {
		if handler := r.getCommandHandler(commandOf(text)); handler != nil {
			return r.executeHandler(handler, c)
		}
	}

	if cmd, ok := r.menuCommand(text); ok {
		if handler := r.getCommandHandler(cmd); handler != nil {
			return r.executeHandler(handler, c)
		}
	}

	return r.executeHandler(r.get(&r.defaultHandler), c)
}

// commandOf strips arguments and the "@botname" suffix.
func commandOf(text string) string {
	cmd := strings.Fields(text)[0]
	if at := strings.IndexByte(cmd, '@'); at > 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd)
}

func (r *Router) executeHandler(h handlers.Handler, c telebot.Context) error {
	wrapped := r.applyMiddlewares(h)
	if wrapped == nil {
		return nil
	}
	return wrapped(c)
}

func (r *Router) get(slot *handlers.Handler) handlers.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *slot
}

func (r *Router) getCallbackHandler(unique string) handlers.CallbackHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbacks[unique]
}

func (r *Router) getCommandHandler(cmd string) handlers.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.commands[cmd]
}

func (r *Router) menuCommand(text string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.menuTexts[text]
	return cmd, ok
}

// applyMiddlewares wraps the handler with all registered middlewares.
func (r *Router) applyMiddlewares(h handlers.Handler) handlers.Handler {
	if h == nil {
		return nil
	}

	middlewares := r.middlewaresSnapshot()
	wrapped := h
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}

	return wrapped
}

func (r *Router) middlewaresSnapshot() []handlers.Middleware {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.middlewares) == 0 {
		return nil
	}

	snapshot := make([]handlers.Middleware, len(r.middlewares))
	copy(snapshot, r.middlewares)
	return snapshot
}
