package keyboard_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/homebox-bot/internal/bot/keyboard"
)

func TestMainMenu(t *testing.T) {
	translator := &mockTranslator{
		translations: map[string]string{
			"main_menu.new_item":  "New item",
			"main_menu.locations": "Locations",
			"main_menu.recent":    "Recent",
			"main_menu.settings":  "Settings",
			"main_menu.help":      "Help",
		},
	}

	markup := keyboard.MainMenu(translator)
	assert.True(t, markup.ResizeKeyboard)

	expectedRows := [][]string{
		{"New item"},
		{"Locations", "Recent"},
		{"Settings", "Help"},
	}

	require.Len(t, markup.ReplyKeyboard, len(expectedRows))
	for i, row := range expectedRows {
		require.Len(t, markup.ReplyKeyboard[i], len(row))
		for j, text := range row {
			assert.Equal(t, text, markup.ReplyKeyboard[i][j].Text)
		}
	}
}
