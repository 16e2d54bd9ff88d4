package i18n

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmbeddedCatalogs(t *testing.T) {
	m, err := Load("", "en")
	require.NoError(t, err)

	assert.Equal(t, []string{"en", "ru"}, m.Languages())
	assert.Equal(t, "📷 New item", m.Translator("en").T("main_menu.new_item"))
	assert.Equal(t, "📷 Новый предмет", m.Translator("ru").T("main_menu.new_item"))
}

func TestEmbeddedCatalogsHaveSameKeys(t *testing.T) {
	m, err := Load("", "en")
	require.NoError(t, err)

	en := m.translations["en"]
	ru := m.translations["ru"]
	for key := range en {
		assert.Contains(t, ru, key, "ru is missing %s", key)
	}
	for key := range ru {
		assert.Contains(t, en, key, "en is missing %s", key)
	}
}

func TestTranslator_Fallbacks(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/en.yaml": {Data: []byte("en:\n  greeting: Hello\n  only_en: English only\n")},
		"locales/de.yaml": {Data: []byte("de:\n  greeting: Hallo\n")},
	}

	m, err := LoadFS(fsys, "locales", "en")
	require.NoError(t, err)

	tests := []struct {
		name string
		lang string
		key  string
		want string
	}{
		{name: "own language", lang: "de", key: "greeting", want: "Hallo"},
		{name: "falls back to default language", lang: "de", key: "only_en", want: "English only"},
		{name: "unknown language uses default", lang: "xx", key: "greeting", want: "Hello"},
		{name: "case and spaces are normalized", lang: " DE ", key: "greeting", want: "Hallo"},
		{name: "missing key returns the key", lang: "en", key: "nope.missing", want: "nope.missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Translator(tt.lang).T(tt.key))
		})
	}

	assert.Equal(t, "en", m.Translator("xx").Lang())
}

func TestTranslator_Tf(t *testing.T) {
	fsys := fstest.MapFS{
		"en.yaml": {Data: []byte("en:\n  payload:\n    created: \"{{.Name}} -> {{.Location}}\"\n")},
	}

	m, err := LoadFS(fsys, ".", "en")
	require.NoError(t, err)

	got := m.Translator("en").Tf("payload.created", map[string]any{"Name": "Winter Boots", "Location": "Garage Shelf 2"})
	assert.Equal(t, "Winter Boots -> Garage Shelf 2", got)
}

func TestLoadFS_Errors(t *testing.T) {
	_, err := LoadFS(fstest.MapFS{"readme.txt": {Data: []byte("x")}}, ".", "en")
	assert.Error(t, err)

	_, err = LoadFS(fstest.MapFS{"de.yaml": {Data: []byte("de:\n  a: b\n")}}, ".", "en")
	assert.ErrorContains(t, err, "default language")
}

func TestNilManager(t *testing.T) {
	var m *Manager
	assert.Equal(t, "some.key", m.Translator("en").T("some.key"))
	assert.Nil(t, m.Languages())
}
