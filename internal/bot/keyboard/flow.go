package keyboard

import (
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/homebox-bot/internal/domain"
	"github.com/Proton-105/homebox-bot/internal/i18n"
	"github.com/Proton-105/homebox-bot/internal/state"
	"github.com/Proton-105/homebox-bot/internal/workflow"
)

const maxLabelRunes = 40

// Flow builds the inline keyboard for a workflow render. It returns nil when
// the render offers no controls.
func Flow(t i18n.Translator, r workflow.Render) (*telebot.ReplyMarkup, error) {
	kb := NewInlineKeyboard()

	switch p := r.Payload.(type) {
	case workflow.LocationListPayload:
		unique := locationUnique(r.State)
		for _, loc := range p.Locations {
			kb.AddRow(InlineButton{Text: locationLabel(loc, p.Markers), Unique: unique, Data: loc.ID})
		}
		if p.Pages > 1 {
			kb.AddRow(PaginationButtons(t, UniquePage, p.Page+1, p.Pages)...)
		}
	case workflow.ItemListPayload:
		for _, item := range p.Items {
			kb.AddRow(InlineButton{Text: clipLabel(item.Name), Unique: UniqueItem, Data: item.ID})
		}
		if p.Pages > 1 {
			kb.AddRow(PaginationButtons(t, UniquePage, p.Page+1, p.Pages)...)
		}
	}

	buttons := make([]InlineButton, 0, len(r.Actions))
	for _, a := range r.Actions {
		if a == workflow.ActionPrevPage || a == workflow.ActionNextPage {
			continue
		}
		buttons = append(buttons, InlineButton{Text: t.T("actions." + string(a)), Unique: UniqueAction, Data: string(a)})
	}
	kb.AddGrid(2, buttons...)

	if kb.Empty() {
		return nil, nil
	}
	return kb.Build()
}

func locationUnique(s state.State) string {
	switch s {
	case state.StateSelectingForMark:
		return UniqueToggleMarker
	case state.StateViewingLocations:
		return UniqueDescribe
	default:
		return UniquePickLocation
	}
}

func locationLabel(loc domain.Location, markers map[string]bool) string {
	label := clipLabel(loc.Name)
	if markers == nil {
		return label
	}
	if markers[loc.ID] {
		return "✅ " + label
	}
	return "▫️ " + label
}

func clipLabel(s string) string {
	runes := []rune(s)
	if len(runes) <= maxLabelRunes {
		return s
	}
	return string(runes[:maxLabelRunes-1]) + "…"
}
