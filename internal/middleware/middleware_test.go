package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/homebox-bot/internal/bot/handlers"
	apperrors "github.com/Proton-105/homebox-bot/internal/errors"
	"github.com/Proton-105/homebox-bot/internal/idempotency"
	"github.com/Proton-105/homebox-bot/internal/ratelimit"
	"github.com/Proton-105/homebox-bot/pkg/config"
)

// fakeContext implements the parts of telebot.Context the middlewares touch.
type fakeContext struct {
	telebot.Context
	sender   *telebot.User
	message  *telebot.Message
	callback *telebot.Callback
	store    map[string]any
}

func (f *fakeContext) Sender() *telebot.User        { return f.sender }
func (f *fakeContext) Message() *telebot.Message    { return f.message }
func (f *fakeContext) Callback() *telebot.Callback  { return f.callback }
func (f *fakeContext) Get(key string) any           { return f.store[key] }
func (f *fakeContext) Set(key string, v any)        { f.store[key] = v }
func (f *fakeContext) Text() string {
	if f.message == nil {
		return ""
	}
	return f.message.Text
}

func messageContext(userID int64, msgID int, text string) *fakeContext {
	return &fakeContext{
		sender:  &telebot.User{ID: userID},
		message: &telebot.Message{ID: msgID, Text: text, Chat: &telebot.Chat{ID: userID}},
		store:   map[string]any{},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUpdateLabel(t *testing.T) {
	tests := []struct {
		name string
		ctx  *fakeContext
		want string
	}{
		{"command", messageContext(1, 1, "/search drill bits"), "/search"},
		{"command with bot name", messageContext(1, 1, "/start@homebox_bot"), "/start"},
		{"text", messageContext(1, 1, "Garage shelf"), "text"},
		{"callback", &fakeContext{callback: &telebot.Callback{Data: "loc:abc"}}, "cb_loc"},
		{"photo", &fakeContext{message: &telebot.Message{Photo: &telebot.Photo{}}}, "photo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UpdateLabel(tt.ctx))
		})
	}
}

func TestIdempotencyDropsRepeatedUpdate(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	manager := idempotency.NewManager(idempotency.NewRedisStore(client, testLogger()), time.Hour, testLogger())

	calls := 0
	h := Idempotency(manager, testLogger())(func(telebot.Context) error {
		calls++
		return nil
	})

	c := messageContext(5, 42, "hello")
	require.NoError(t, h(c))
	require.NoError(t, h(c))
	assert.Equal(t, 1, calls)

	require.NoError(t, h(messageContext(5, 43, "hello")))
	assert.Equal(t, 2, calls)
}

func TestRateLimitMiddleware(t *testing.T) {
	rules, err := ratelimit.NewRules(config.RateLimitConfig{
		Whitelist: []int64{99},
		PerUser:   config.RateLimitRule{Limit: 2, Window: "1m"},
	})
	require.NoError(t, err)

	mw := NewRateLimitMiddleware(ratelimit.NewMemoryLimiter(testLogger()), rules, testLogger())
	h := mw.Handle(func(telebot.Context) error { return nil })

	require.NoError(t, h(messageContext(1, 1, "a")))
	require.NoError(t, h(messageContext(1, 2, "b")))

	err = h(messageContext(1, 3, "c"))
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeRateLimit, apperrors.CodeOf(err))

	for i := 0; i < 5; i++ {
		assert.NoError(t, h(messageContext(99, i, "x")))
	}
}

func TestRateLimitPhotoRule(t *testing.T) {
	rules, err := ratelimit.NewRules(config.RateLimitConfig{
		Photos: config.RateLimitRule{Limit: 1, Window: "1m"},
	})
	require.NoError(t, err)

	mw := NewRateLimitMiddleware(ratelimit.NewMemoryLimiter(testLogger()), rules, testLogger())
	h := mw.Handle(func(telebot.Context) error { return nil })

	photo := func(id int) *fakeContext {
		c := messageContext(1, id, "")
		c.message.Photo = &telebot.Photo{}
		return c
	}

	require.NoError(t, h(photo(1)))
	assert.Error(t, h(photo(2)))
	assert.NoError(t, h(messageContext(1, 3, "text is not a photo")))
}

func TestHTTPLogging(t *testing.T) {
	h := HTTPLogging(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestIdempotencyPassesErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	manager := idempotency.NewManager(idempotency.NewRedisStore(client, testLogger()), time.Hour, testLogger())
	boom := errors.New("boom")
	h := Idempotency(manager, testLogger())(func(c telebot.Context) error {
		assert.NotNil(t, handlers.Ctx(c))
		return boom
	})

	c := messageContext(5, 1, "x")
	c.Set(handlers.ContextKey, context.Background())
	assert.ErrorIs(t, h(c), boom)
}
