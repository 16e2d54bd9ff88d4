// Package database opens the settings database and applies the embedded schema migrations.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Proton-105/homebox-bot/pkg/config"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"

	migrationsDir = "migrations"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open connects to the configured database and verifies connectivity.
func Open(ctx context.Context, cfg config.StorageConfig, log *slog.Logger) (*sqlx.DB, error) {
	if log == nil {
		log = slog.Default()
	}

	dsn := cfg.DSN
	if cfg.Driver == DriverSQLite {
		var err error
		if dsn, err = prepareSQLite(dsn); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, cfg.Driver, dsn)
	if err != nil {
		log.Error("db connect failed", slog.String("driver", cfg.Driver), slog.Any("error", err))
		return nil, fmt.Errorf("db connect: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		// one writer at a time keeps sqlite free of SQLITE_BUSY under concurrent sessions
		db.SetMaxOpenConns(1)
	}

	log.Info("db connected", slog.String("driver", cfg.Driver), slog.Duration("duration", time.Since(start)))

	return db, nil
}

// Migrate applies every pending up migration embedded in the binary.
func Migrate(db *sqlx.DB, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}

	var (
		driver database.Driver
		err    error
	)
	switch db.DriverName() {
	case DriverSQLite:
		driver, err = sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	case DriverPostgres:
		driver, err = postgres.WithInstance(db.DB, &postgres.Config{})
	default:
		return fmt.Errorf("migrate: unsupported driver %q", db.DriverName())
	}
	if err != nil {
		return fmt.Errorf("migrate: init %s driver: %w", db.DriverName(), err)
	}

	src, err := iofs.New(migrationsFS, migrationsDir)
	if err != nil {
		return fmt.Errorf("migrate: open embedded source: %w", err)
	}
	defer src.Close()

	m, err := migrate.NewWithInstance("iofs", src, db.DriverName(), driver)
	if err != nil {
		return fmt.Errorf("migrate: init: %w", err)
	}
	// m.Close is not called: for sqlite it would close the shared *sql.DB.

	fromVer, _, _ := m.Version()
	start := time.Now()

	switch upErr := m.Up(); {
	case upErr == nil:
	case errors.Is(upErr, migrate.ErrNoChange):
		log.Info("migrations up to date", slog.Uint64("version", uint64(fromVer)))
		return nil
	default:
		log.Error("migration failed", slog.Any("error", upErr), slog.Duration("duration", time.Since(start)))
		return fmt.Errorf("migrate: up: %w", upErr)
	}

	toVer, _, _ := m.Version()
	log.Info("migrations applied",
		slog.Uint64("from_ver", uint64(fromVer)),
		slog.Uint64("to_ver", uint64(toVer)),
		slog.Duration("duration", time.Since(start)),
	)

	return nil
}

func prepareSQLite(dsn string) (string, error) {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	if path != "" && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", fmt.Errorf("create database directory: %w", err)
		}
	}

	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000&_journal_mode=WAL"
	}

	return dsn, nil
}
