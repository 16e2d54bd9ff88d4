package bot

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/homebox-bot/internal/bot/handlers"
	"github.com/Proton-105/homebox-bot/internal/bot/keyboard"
	"github.com/Proton-105/homebox-bot/internal/domain"
	apperrors "github.com/Proton-105/homebox-bot/internal/errors"
	"github.com/Proton-105/homebox-bot/internal/i18n"
	"github.com/Proton-105/homebox-bot/internal/state"
	"github.com/Proton-105/homebox-bot/internal/workflow"
)

// Sender delivers messages that are not replies to an update.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// AttachmentSource downloads item photos for the item card.
type AttachmentSource interface {
	DownloadAttachment(ctx context.Context, itemID, attachmentID string) ([]byte, error)
}

// LanguageSource resolves a user's interface language.
type LanguageSource interface {
	GetSettings(ctx context.Context, userID int64) domain.UserSettings
}

// Presenter turns workflow renders into Telegram messages.
type Presenter struct {
	sender      Sender
	attachments AttachmentSource
	languages   LanguageSource
	translators handlers.TranslatorSource
	log         *slog.Logger
}

func NewPresenter(sender Sender, attachments AttachmentSource, languages LanguageSource, translators handlers.TranslatorSource, log *slog.Logger) *Presenter {
	if log == nil {
		log = slog.Default()
	}

	return &Presenter{
		sender:      sender,
		attachments: attachments,
		languages:   languages,
		translators: translators,
		log:         log,
	}
}

// Present answers the update behind c. Button presses edit the message they came from.
func (p *Presenter) Present(c telebot.Context, r workflow.Render) error {
	if r.Stale {
		return nil
	}

	t := handlers.T(c)
	text, markup := p.compose(t, r)
	if text == "" {
		return nil
	}

	if item, ok := r.Payload.(workflow.ItemPayload); ok && item.Item.PhotoID != "" {
		if photo := p.itemPhoto(handlers.Ctx(c), item.Item, text); photo != nil {
			return c.Send(photo, sendOpts(markup)...)
		}
	}

	// only inline keyboards can be edited in place
	if cb := c.Callback(); cb != nil && cb.Message != nil && cb.Message.Photo == nil && (markup == nil || markup.ReplyKeyboard == nil) {
		err := c.Edit(text, sendOpts(markup)...)
		if err == nil || errors.Is(err, telebot.ErrSameMessageContent) {
			return nil
		}
		p.log.Debug("edit failed, sending instead", slog.Any("error", err))
	}

	return c.Send(text, sendOpts(markup)...)
}

// Notify sends a render to a user outside of an update, for progress and expiry notices.
func (p *Presenter) Notify(ctx context.Context, userID int64, r workflow.Render) {
	if r.Stale || p.sender == nil {
		return
	}

	t := p.translator(ctx, userID)
	text, markup := p.compose(t, r)
	if text == "" {
		return
	}

	if _, err := p.sender.Send(&telebot.User{ID: userID}, text, sendOpts(markup)...); err != nil {
		p.log.Warn("failed to notify user", slog.Int64("user_id", userID), slog.String("notice", string(r.Notice)), slog.Any("error", err))
	}
}

func sendOpts(markup *telebot.ReplyMarkup) []interface{} {
	if markup == nil {
		return nil
	}
	return []interface{}{markup}
}

func (p *Presenter) translator(ctx context.Context, userID int64) i18n.Translator {
	lang := ""
	if p.languages != nil {
		lang = p.languages.GetSettings(ctx, userID).Language
	}
	if p.translators == nil {
		return (*i18n.Manager)(nil).Translator(lang)
	}
	return p.translators.Translator(lang)
}

func (p *Presenter) compose(t i18n.Translator, r workflow.Render) (string, *telebot.ReplyMarkup) {
	parts := make([]string, 0, 3)
	if r.Notice != workflow.NoticeNone {
		parts = append(parts, t.T("notice."+string(r.Notice)))
	}
	if body := payloadText(t, r.Payload); body != "" {
		parts = append(parts, body)
	}
	if apperrors.IsValidation(r.Err) {
		var appErr *apperrors.AppError
		if errors.As(r.Err, &appErr) && appErr.Message != "" {
			parts = append(parts, appErr.Message)
		}
	}

	text := strings.Join(parts, "\n\n")

	markup, err := keyboard.Flow(t, r)
	if err != nil {
		p.log.Error("failed to build flow keyboard", slog.String("state", string(r.State)), slog.Any("error", err))
		markup = nil
	}
	if markup == nil && r.State == state.StateIdle {
		markup = keyboard.MainMenu(t)
	}

	return text, markup
}

func (p *Presenter) itemPhoto(ctx context.Context, item domain.ItemSummary, caption string) *telebot.Photo {
	if p.attachments == nil {
		return nil
	}

	data, err := p.attachments.DownloadAttachment(ctx, item.ID, item.PhotoID)
	if err != nil {
		p.log.Warn("failed to download item photo", slog.String("item_id", item.ID), slog.Any("error", err))
		return nil
	}

	// Telegram caps captions at 1024 characters
	if runes := []rune(caption); len(runes) > 1024 {
		caption = string(runes[:1023]) + "…"
	}

	return &telebot.Photo{File: telebot.FromReader(bytes.NewReader(data)), Caption: caption}
}

func payloadText(t i18n.Translator, payload any) string {
	switch pl := payload.(type) {
	case workflow.SuggestionPayload:
		return t.Tf("payload.suggestion", map[string]any{
			"Name":        pl.Suggestion.Name,
			"Description": pl.Suggestion.Description,
			"Location":    pl.Suggestion.Location,
		})
	case workflow.DescriptionPayload:
		return t.Tf("payload.proposal", map[string]any{
			"Location": pl.Location.Name,
			"Proposal": pl.Proposal,
		})
	case workflow.ItemListPayload:
		if pl.Query == "" {
			return ""
		}
		return t.Tf("payload.query", map[string]any{"Query": pl.Query})
	case workflow.ItemPayload:
		return t.Tf("payload.item", map[string]any{
			"Name":        pl.Item.Name,
			"Description": pl.Item.Description,
			"Location":    pl.Item.LocationName,
		})
	case workflow.CreatedPayload:
		return t.Tf("payload.created", map[string]any{
			"Name":     pl.Name,
			"Location": pl.Location,
		})
	}
	return ""
}
