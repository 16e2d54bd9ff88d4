package keyboard

import (
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/homebox-bot/internal/i18n"
)

// MenuKeys are the translation keys of the main menu buttons, in layout order.
var MenuKeys = []string{
	"main_menu.new_item",
	"main_menu.locations",
	"main_menu.recent",
	"main_menu.settings",
	"main_menu.help",
}

// MainMenu builds a localized reply keyboard for the bot main menu.
func MainMenu(t i18n.Translator) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{
		ResizeKeyboard:  true,
		OneTimeKeyboard: false,
	}

	lookup := func(key string) string {
		if t == nil {
			return key
		}
		return t.T(key)
	}

	newItemBtn := markup.Text(lookup("main_menu.new_item"))
	locationsBtn := markup.Text(lookup("main_menu.locations"))
	recentBtn := markup.Text(lookup("main_menu.recent"))
	settingsBtn := markup.Text(lookup("main_menu.settings"))
	helpBtn := markup.Text(lookup("main_menu.help"))

	markup.Reply(
		markup.Row(newItemBtn),
		markup.Row(locationsBtn, recentBtn),
		markup.Row(settingsBtn, helpBtn),
	)

	return markup
}
