package database

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/homebox-bot/pkg/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenAndMigrate_SQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "bot.db")

	db, err := Open(context.Background(), config.StorageConfig{Driver: DriverSQLite, DSN: dsn}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(db, testLogger()))
	// second run is a no-op
	require.NoError(t, Migrate(db, testLogger()))

	for _, table := range []string{"users", "user_settings", "location_markers", "bot_stats"} {
		var count int
		err := db.Get(&count, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table)
		require.NoError(t, err)
		assert.Equal(t, 1, count, table)
	}
}

func TestPrepareSQLite(t *testing.T) {
	dsn, err := prepareSQLite(":memory:")
	require.NoError(t, err)
	assert.Equal(t, ":memory:?_busy_timeout=5000&_journal_mode=WAL", dsn)

	dsn, err = prepareSQLite("file:" + filepath.Join(t.TempDir(), "x.db") + "?cache=shared")
	require.NoError(t, err)
	assert.Contains(t, dsn, "cache=shared")
	assert.NotContains(t, dsn, "_busy_timeout")
}
