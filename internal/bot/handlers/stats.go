package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/homebox-bot/internal/domain"
)

// StatsSource reads and resets the usage counters.
type StatsSource interface {
	GetStats(ctx context.Context) (domain.Stats, error)
	ResetStats(ctx context.Context) error
}

// NewStatsHandler serves /stats for admins; "/stats reset" zeroes the counters.
func NewStatsHandler(stats StatsSource, isAdmin func(int64) bool, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		if c.Sender() == nil {
			return nil
		}

		t := T(c)
		if !isAdmin(c.Sender().ID) {
			return c.Send(t.T("stats.admin_only"))
		}

		ctx := Ctx(c)
		if strings.TrimSpace(c.Message().Payload) == "reset" {
			if err := stats.ResetStats(ctx); err != nil {
				return err
			}
			log.Info("statistics reset", slog.Int64("user_id", c.Sender().ID))
			return c.Send(t.T("stats.reset_done"))
		}

		snapshot, err := stats.GetStats(ctx)
		if err != nil {
			return err
		}

		return c.Send(t.Tf("stats.text", map[string]any{
			"Uptime":    snapshot.Uptime(time.Now()).Truncate(time.Second),
			"Items":     snapshot.ItemsCreated,
			"Errors":    snapshot.Errors,
			"Requests":  snapshot.Requests,
			"Users":     snapshot.UsersRegistered,
			"Active24h": snapshot.Active24h,
			"Active7d":  snapshot.Active7d,
			"Languages": distribution(snapshot.Languages),
			"Models":    distribution(snapshot.Models),
		}))
	}
}

func distribution(counts map[string]int64) string {
	if len(counts) == 0 {
		return "-"
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %d", k, counts[k]))
	}
	return strings.Join(parts, ", ")
}
