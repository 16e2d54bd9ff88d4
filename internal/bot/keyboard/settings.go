package keyboard

import (
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/homebox-bot/internal/domain"
	"github.com/Proton-105/homebox-bot/internal/i18n"
)

// ModelsPerPage is the size of one model picker page.
const ModelsPerPage = 10

var languageNames = map[string]string{
	"en": "🇬🇧 English",
	"ru": "🇷🇺 Русский",
	"de": "🇩🇪 Deutsch",
	"fr": "🇫🇷 Français",
	"es": "🇪🇸 Español",
}

// LanguageName is the display name of a language code.
func LanguageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}

// SettingsMenu is the overview keyboard.
func SettingsMenu(t i18n.Translator) *telebot.ReplyMarkup {
	markup, _ := NewInlineKeyboard().
		AddRow(InlineButton{Text: t.T("settings.language"), Unique: UniqueSettingsMenu, Data: MenuLanguage}).
		AddRow(InlineButton{Text: t.T("settings.gen_language"), Unique: UniqueSettingsMenu, Data: MenuGenLanguage}).
		AddRow(InlineButton{Text: t.T("settings.model"), Unique: UniqueSettingsMenu, Data: MenuModel + "1"}).
		AddRow(InlineButton{Text: t.T("settings.filter"), Unique: UniqueSettingsMenu, Data: MenuFilter}).
		Build()
	return markup
}

// LanguagePicker lists languages, marking the current one.
func LanguagePicker(t i18n.Translator, unique string, languages []string, current string) *telebot.ReplyMarkup {
	buttons := make([]InlineButton, 0, len(languages))
	for _, code := range languages {
		buttons = append(buttons, InlineButton{Text: checked(LanguageName(code), code == current), Unique: unique, Data: code})
	}

	markup, _ := NewInlineKeyboard().
		AddGrid(2, buttons...).
		AddRow(backToSettings(t)).
		Build()
	return markup
}

// ModelPicker shows one page of models. Buttons carry the model's index so long
// identifiers fit the callback limit.
func ModelPicker(t i18n.Translator, models []string, current string, page int) *telebot.ReplyMarkup {
	pages := (len(models) + ModelsPerPage - 1) / ModelsPerPage
	if pages < 1 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}

	kb := NewInlineKeyboard()
	start := (page - 1) * ModelsPerPage
	end := start + ModelsPerPage
	if end > len(models) {
		end = len(models)
	}
	for i := start; i < end; i++ {
		kb.AddRow(InlineButton{Text: checked(clipLabel(models[i]), models[i] == current), Unique: UniqueSetModel, Data: strconv.Itoa(i)})
	}

	if pages > 1 {
		nav := PaginationButtons(t, UniqueSettingsMenu, page, pages)
		for i := range nav {
			nav[i].Data = MenuModel + nav[i].Data
		}
		kb.AddRow(nav...)
	}

	markup, _ := kb.AddRow(backToSettings(t)).Build()
	return markup
}

// FilterPicker offers the location filter modes.
func FilterPicker(t i18n.Translator, current domain.FilterMode) *telebot.ReplyMarkup {
	markup, _ := NewInlineKeyboard().
		AddRow(InlineButton{
			Text:   checked(t.T("settings.filter_unrestricted"), current == domain.FilterUnrestricted),
			Unique: UniqueSetFilter,
			Data:   string(domain.FilterUnrestricted),
		}).
		AddRow(InlineButton{
			Text:   checked(t.T("settings.filter_marker"), current == domain.FilterMarker),
			Unique: UniqueSetFilter,
			Data:   string(domain.FilterMarker),
		}).
		AddRow(backToSettings(t)).
		Build()
	return markup
}

func backToSettings(t i18n.Translator) InlineButton {
	return InlineButton{Text: t.T("actions.back"), Unique: UniqueSettingsMenu, Data: MenuOverview}
}

func checked(label string, on bool) string {
	if on {
		return "• " + label
	}
	return label
}
