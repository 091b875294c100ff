package postgres

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // postgres:// driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// MigrateUp applies all pending migrations from fsys.
func MigrateUp(databaseURL string, fsys fs.FS) error {
	return runMigrations(databaseURL, fsys, func(m *migrate.Migrate) error { return m.Up() })
}

// MigrateDown rolls back steps migrations. A non-positive steps rolls back
// everything.
func MigrateDown(databaseURL string, fsys fs.FS, steps int) error {
	return runMigrations(databaseURL, fsys, func(m *migrate.Migrate) error {
		if steps <= 0 {
			return m.Down()
		}
		return m.Steps(-steps)
	})
}

func runMigrations(databaseURL string, fsys fs.FS, apply func(*migrate.Migrate) error) error {
	src, err := iofs.New(fsys, ".")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if err := errors.Join(srcErr, dbErr); err != nil {
			slog.Warn("failed to close migrator", "error", err)
		}
	}()

	if err := apply(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		slog.Info("database schema is empty")
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	default:
		slog.Info("database schema migrated", "version", version, "dirty", dirty)
	}
	return nil
}
