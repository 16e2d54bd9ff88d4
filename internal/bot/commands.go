package bot

import (
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/homebox-bot/internal/i18n"
)

// Command constants for Telegram bot commands.
const (
	CommandStart     = "/start"
	CommandNew       = "/new"
	CommandCancel    = "/cancel"
	CommandLocations = "/locations"
	CommandSearch    = "/search"
	CommandRecent    = "/recent"
	CommandSettings  = "/settings"
	CommandStats     = "/stats"
	CommandHelp      = "/help"
)

// menuCommands maps main menu buttons to the command they stand for.
var menuCommands = map[string]string{
	"main_menu.new_item":  CommandNew,
	"main_menu.locations": CommandLocations,
	"main_menu.recent":    CommandRecent,
	"main_menu.settings":  CommandSettings,
	"main_menu.help":      CommandHelp,
}

// publicCommands are advertised in the Telegram command menu.
var publicCommands = []string{
	CommandNew,
	CommandCancel,
	CommandLocations,
	CommandSearch,
	CommandRecent,
	CommandSettings,
	CommandHelp,
}

// MenuTexts maps every localized main menu label to its command.
func MenuTexts(m *i18n.Manager) map[string]string {
	texts := make(map[string]string)
	for _, lang := range m.Languages() {
		t := m.Translator(lang)
		for key, cmd := range menuCommands {
			if label := t.T(key); label != key {
				texts[label] = cmd
			}
		}
	}
	return texts
}

// CommandList is the command menu in the given language.
func CommandList(t i18n.Translator) []telebot.Command {
	commands := make([]telebot.Command, 0, len(publicCommands))
	for _, cmd := range publicCommands {
		commands = append(commands, telebot.Command{
			Text:        cmd[1:],
			Description: t.T("commands." + cmd[1:]),
		})
	}
	return commands
}
