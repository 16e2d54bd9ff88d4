package keyboard_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/homebox-bot/internal/bot/keyboard"
)

type mockTranslator struct {
	translations map[string]string
	lang         string
}

func (m *mockTranslator) T(key string) string {
	if val, ok := m.translations[key]; ok {
		return val
	}
	return key
}

func (m *mockTranslator) Tf(key string, vars map[string]any) string {
	text := m.T(key)
	for name, value := range vars {
		text = strings.ReplaceAll(text, "{{."+name+"}}", fmt.Sprint(value))
	}
	return text
}

func (m *mockTranslator) Lang() string {
	if m.lang == "" {
		return "en"
	}
	return m.lang
}

func TestPaginationButtons(t *testing.T) {
	translator := &mockTranslator{
		translations: map[string]string{
			"pagination.prev": "◀️",
			"pagination.next": "▶️",
			"pagination.page": "{{.Page}} of {{.Total}}",
		},
	}

	testCases := []struct {
		name      string
		page      int
		total     int
		wantTexts []string
		wantData  []string
	}{
		{name: "first page", page: 1, total: 5, wantTexts: []string{"1 of 5", "▶️"}, wantData: []string{"1", "2"}},
		{name: "middle page", page: 3, total: 5, wantTexts: []string{"◀️", "3 of 5", "▶️"}, wantData: []string{"2", "3", "4"}},
		{name: "last page", page: 5, total: 5, wantTexts: []string{"◀️", "5 of 5"}, wantData: []string{"4", "5"}},
		{name: "single page", page: 1, total: 1, wantTexts: []string{"1 of 1"}, wantData: []string{"1"}},
		{name: "page past the end", page: 9, total: 2, wantTexts: []string{"◀️", "2 of 2"}, wantData: []string{"1", "2"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buttons := keyboard.PaginationButtons(translator, keyboard.UniquePage, tc.page, tc.total)
			require.Len(t, buttons, len(tc.wantTexts))

			for i := range tc.wantTexts {
				assert.Equal(t, tc.wantTexts[i], buttons[i].Text)
				assert.Equal(t, keyboard.UniquePage, buttons[i].Unique)
				assert.Equal(t, tc.wantData[i], buttons[i].Data)
			}
		})
	}
}

func TestPaginationButtonsFallback(t *testing.T) {
	buttons := keyboard.PaginationButtons(&mockTranslator{}, keyboard.UniquePage, 2, 3)
	require.Len(t, buttons, 3)
	assert.Equal(t, "◀️ Prev", buttons[0].Text)
	assert.Equal(t, "Page 2/3", buttons[1].Text)
	assert.Equal(t, "Next ▶️", buttons[2].Text)
}
