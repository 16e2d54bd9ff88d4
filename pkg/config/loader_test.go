package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
bot:
  token: "file-token"
  allowed_user_ids: [1, 2]
homebox:
  url: "https://homebox.example.com/"
  username: "bot"
  password: "secret"
ai:
  api_key: "sk-test"
  default_model: "gpt-4o"
  available_models: ["gpt-4o", "gpt-4o-mini"]
storage:
  driver: sqlite3
  dsn: "data/test.db"
  photo_dir: "data/photos"
`

func writeConfig(t *testing.T, env, body string) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", env+".yaml"), []byte(body), 0o600))
	t.Chdir(dir)
	t.Setenv("APP_ENV", env)
}

func TestLoad(t *testing.T) {
	writeConfig(t, "test", testYAML)

	cfg, v, err := Load()
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Equal(t, "test", cfg.AppEnv)
	assert.Equal(t, "file-token", cfg.Bot.Token)
	assert.Equal(t, []int64{1, 2}, cfg.Bot.AllowedUserIDs)
	assert.Equal(t, "https://homebox.example.com", cfg.HomeBox.URL)
	assert.Equal(t, 30*time.Second, cfg.HomeBox.Timeout)
	assert.Equal(t, "unrestricted", cfg.HomeBox.DefaultFilterMode)
	assert.Equal(t, int64(20<<20), cfg.Storage.MaxPhotoBytes)
	assert.Equal(t, "polling", cfg.Bot.Mode)
}

func TestLoad_EnvOverride(t *testing.T) {
	writeConfig(t, "test", testYAML)
	t.Setenv("BOT_TOKEN", "env-token")
	t.Setenv("LOGGER_LEVEL", "debug")

	cfg, _, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Bot.Token)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestLoad_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{
			name: "missing credentials",
			body: `
bot: {token: "t"}
homebox: {url: "https://hb.example.com"}
ai: {api_key: "k", default_model: "gpt-4o", available_models: ["gpt-4o"]}
`,
		},
		{
			name: "default model not allowed",
			body: `
bot: {token: "t"}
homebox: {url: "https://hb.example.com", token: "x"}
ai: {api_key: "k", default_model: "gpt-5", available_models: ["gpt-4o"]}
`,
		},
		{
			name: "unknown driver",
			body: `
bot: {token: "t"}
homebox: {url: "https://hb.example.com", token: "x"}
ai: {api_key: "k", default_model: "gpt-4o", available_models: ["gpt-4o"]}
storage: {driver: "mysql"}
`,
		},
		{
			name: "staged photos expire before idle sessions",
			body: `
bot: {token: "t"}
homebox: {url: "https://hb.example.com", token: "x"}
ai: {api_key: "k", default_model: "gpt-4o", available_models: ["gpt-4o"]}
storage: {staged_ttl: "1h"}
session: {idle_ttl: "2h"}
`,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			writeConfig(t, "broken", tc.body)

			_, _, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestBotConfig_Access(t *testing.T) {
	open := BotConfig{}
	assert.True(t, open.IsAllowed(99))
	assert.False(t, open.IsAdmin(99))

	restricted := BotConfig{AllowedUserIDs: []int64{7}, AdminIDs: []int64{7}}
	assert.True(t, restricted.IsAllowed(7))
	assert.False(t, restricted.IsAllowed(8))
	assert.True(t, restricted.IsAdmin(7))
}
