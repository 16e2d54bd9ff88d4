package handlers

import (
	"context"
	"log/slog"
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/homebox-bot/internal/bot/keyboard"
	"github.com/Proton-105/homebox-bot/internal/domain"
	apperrors "github.com/Proton-105/homebox-bot/internal/errors"
	"github.com/Proton-105/homebox-bot/internal/i18n"
)

// SettingsStore is the part of the settings store the settings screens use.
type SettingsStore interface {
	GetSettings(ctx context.Context, userID int64) domain.UserSettings
	Models() []string
	SetLanguage(ctx context.Context, userID int64, lang string) error
	SetGenLanguage(ctx context.Context, userID int64, lang string) error
	SetModel(ctx context.Context, userID int64, model string) error
	SetFilterMode(ctx context.Context, userID int64, mode domain.FilterMode) error
}

// TranslatorSource yields a translator for a language code.
type TranslatorSource interface {
	Translator(lang string) i18n.Translator
}

// Settings serves /settings and its inline menus.
type Settings struct {
	store SettingsStore
	tr    TranslatorSource
	log   *slog.Logger
}

// NewSettings builds the settings screens.
func NewSettings(store SettingsStore, tr TranslatorSource, log *slog.Logger) *Settings {
	if log == nil {
		log = slog.Default()
	}
	return &Settings{store: store, tr: tr, log: log}
}

// Command shows the settings overview.
func (s *Settings) Command(c telebot.Context) error {
	if c.Sender() == nil {
		return nil
	}
	text, markup := s.overview(c, s.store.GetSettings(Ctx(c), c.Sender().ID))
	return c.Send(text, markup)
}

// Callback handles every settings button.
func (s *Settings) Callback(c telebot.Context) error {
	cb := c.Callback()
	if cb == nil || c.Sender() == nil {
		return nil
	}

	unique, payload, err := keyboard.DecodeCallback(cb.Data)
	if err != nil {
		return respondCallback(c, "", false)
	}

	ctx := Ctx(c)
	userID := c.Sender().ID
	t := T(c)

	switch unique {
	case keyboard.UniqueSettingsMenu:
		_ = respondCallback(c, "", false)
		return s.menu(c, payload)

	case keyboard.UniqueSetLanguage:
		if err := s.store.SetLanguage(ctx, userID, payload); err != nil {
			return s.rejected(c, err)
		}
		// the new language applies to this very reply
		t = s.tr.Translator(payload)
		c.Set(TranslatorKey, t)

	case keyboard.UniqueSetGenLanguage:
		if err := s.store.SetGenLanguage(ctx, userID, payload); err != nil {
			return s.rejected(c, err)
		}

	case keyboard.UniqueSetModel:
		models := s.store.Models()
		idx, err := strconv.Atoi(payload)
		if err != nil || idx < 0 || idx >= len(models) {
			return s.rejected(c, apperrors.NewConfigurationError("model", payload))
		}
		if err := s.store.SetModel(ctx, userID, models[idx]); err != nil {
			return s.rejected(c, err)
		}

	case keyboard.UniqueSetFilter:
		if err := s.store.SetFilterMode(ctx, userID, domain.FilterMode(payload)); err != nil {
			return s.rejected(c, err)
		}

	default:
		return respondCallback(c, "", false)
	}

	_ = respondCallback(c, t.T("settings.saved"), false)

	text, markup := s.overview(c, s.store.GetSettings(ctx, userID))
	return c.Edit(text, markup)
}

func (s *Settings) menu(c telebot.Context, payload string) error {
	t := T(c)
	current := s.store.GetSettings(Ctx(c), c.Sender().ID)

	switch payload {
	case keyboard.MenuLanguage:
		return c.Edit(t.T("settings.choose_language"), keyboard.LanguagePicker(t, keyboard.UniqueSetLanguage, domain.Languages, current.Language))
	case keyboard.MenuGenLanguage:
		return c.Edit(t.T("settings.choose_gen_language"), keyboard.LanguagePicker(t, keyboard.UniqueSetGenLanguage, domain.Languages, current.GenLanguage))
	case keyboard.MenuFilter:
		return c.Edit(t.T("settings.choose_filter"), keyboard.FilterPicker(t, current.FilterMode))
	case keyboard.MenuOverview:
		text, markup := s.overview(c, current)
		return c.Edit(text, markup)
	}

	// model pages are addressed as "<MenuModel><page>"
	page := 1
	if len(payload) > len(keyboard.MenuModel) && payload[:len(keyboard.MenuModel)] == keyboard.MenuModel {
		if p, err := strconv.Atoi(payload[len(keyboard.MenuModel):]); err == nil {
			page = p
		}
	}
	return c.Edit(t.T("settings.choose_model"), keyboard.ModelPicker(t, s.store.Models(), current.Model, page))
}

func (s *Settings) overview(c telebot.Context, current domain.UserSettings) (string, *telebot.ReplyMarkup) {
	t := T(c)
	text := t.Tf("settings.title", map[string]any{
		"Language":    keyboard.LanguageName(current.Language),
		"GenLanguage": keyboard.LanguageName(current.GenLanguage),
		"Model":       current.Model,
		"Filter":      t.T("settings.filter_" + string(current.FilterMode)),
	})
	return text, keyboard.SettingsMenu(t)
}

func (s *Settings) rejected(c telebot.Context, err error) error {
	s.log.Warn("settings change rejected", slog.Int64("user_id", c.Sender().ID), slog.Any("error", err))
	msg := T(c).T("errors." + apperrors.CodeOf(err))
	return respondCallback(c, msg, true)
}
