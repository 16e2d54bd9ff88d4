package keyboard_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/homebox-bot/internal/bot/keyboard"
)

func TestInlineKeyboardBuilder(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		builder := keyboard.NewInlineKeyboard()
		builder.AddRow(
			keyboard.InlineButton{Text: "Prev", Unique: "pg", Data: "1"},
			keyboard.InlineButton{Text: "Next", Unique: "pg", Data: "2"},
		).AddRow(
			keyboard.InlineButton{Text: "Confirm", Unique: "a", Data: "confirm"},
		)

		markup, err := builder.Build()
		require.NoError(t, err)
		require.NotNil(t, markup)

		require.Len(t, markup.InlineKeyboard, 2)
		assert.Len(t, markup.InlineKeyboard[0], 2)
		assert.Len(t, markup.InlineKeyboard[1], 1)
		assert.Equal(t, "pg:2", markup.InlineKeyboard[0][1].Data)
		assert.Empty(t, markup.InlineKeyboard[0][1].Unique)
	})

	t.Run("grid", func(t *testing.T) {
		buttons := make([]keyboard.InlineButton, 5)
		for i := range buttons {
			buttons[i] = keyboard.InlineButton{Text: "b", Unique: "a", Data: "x"}
		}

		markup, err := keyboard.NewInlineKeyboard().AddGrid(2, buttons...).Build()
		require.NoError(t, err)
		require.Len(t, markup.InlineKeyboard, 3)
		assert.Len(t, markup.InlineKeyboard[2], 1)
	})

	t.Run("empty rows are skipped", func(t *testing.T) {
		builder := keyboard.NewInlineKeyboard().AddRow()
		assert.True(t, builder.Empty())
	})

	t.Run("callback data overflow", func(t *testing.T) {
		builder := keyboard.NewInlineKeyboard()
		builder.AddRow(keyboard.InlineButton{
			Text:   "Too big",
			Unique: "overflow",
			Data:   strings.Repeat("x", keyboard.CallbackDataLimitBytes),
		})

		_, err := builder.Build()
		assert.Error(t, err)
	})
}
