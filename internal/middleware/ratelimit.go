package middleware

import (
	"errors"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/homebox-bot/internal/bot/handlers"
	apperrors "github.com/Proton-105/homebox-bot/internal/errors"
	"github.com/Proton-105/homebox-bot/internal/ratelimit"
)

// RateLimitMiddleware applies the global, per-user and photo rules.
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
	rules   *ratelimit.Rules
	log     *slog.Logger
}

func NewRateLimitMiddleware(limiter ratelimit.Limiter, rules *ratelimit.Rules, log *slog.Logger) *RateLimitMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &RateLimitMiddleware{limiter: limiter, rules: rules, log: log}
}

// Handle rejects the update with a rate-limit error once any applicable rule is exhausted.
// Limiter failures let the update through.
func (m *RateLimitMiddleware) Handle(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(c telebot.Context) error {
		if m == nil || m.limiter == nil || m.rules == nil || c == nil || c.Sender() == nil {
			return next(c)
		}

		userID := c.Sender().ID
		if m.rules.IsWhitelisted(userID) {
			return next(c)
		}

		kinds := []ratelimit.Kind{ratelimit.KindGlobal, ratelimit.KindUser}
		if isUpload(c) {
			kinds = append(kinds, ratelimit.KindPhoto)
		}

		ctx := handlers.Ctx(c)
		for _, kind := range kinds {
			rule := m.rules.Get(kind)
			if !rule.Enabled() {
				continue
			}

			result, err := m.limiter.Check(ctx, ratelimit.Key(kind, userID), rule.Limit, rule.Window)
			if errors.Is(err, ratelimit.ErrLimitExceeded) {
				retry := result.RetryAfter(time.Now())
				m.log.Warn("rate limit exceeded",
					slog.Int64("user_id", userID),
					slog.String("rule", string(kind)),
					slog.Duration("retry_after", retry),
				)
				return apperrors.NewRateLimitError(int(retry / time.Second))
			}
			if err != nil {
				m.log.Warn("rate limiter error", slog.Int64("user_id", userID), slog.Any("error", err))
				return next(c)
			}
		}

		return next(c)
	}
}

func isUpload(c telebot.Context) bool {
	msg := c.Message()
	return c.Callback() == nil && msg != nil && (msg.Photo != nil || msg.Document != nil)
}
