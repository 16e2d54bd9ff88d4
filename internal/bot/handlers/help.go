package handlers

import (
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/homebox-bot/internal/bot/keyboard"
)

// NewHelpHandler lists the commands.
func NewHelpHandler() Handler {
	return func(c telebot.Context) error {
		t := T(c)
		return c.Send(t.T("help"), keyboard.MainMenu(t))
	}
}
