package db

import (
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations brings the storefront schema up to date from the
// embedded migration files. Safe to run on every start.
func RunMigrations(dsn string, logger *log.Logger) error {
	m, cleanup, err := newMigrator(dsn)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	if version, dirty, err := m.Version(); err == nil {
		state := ""
		if dirty {
			state = " (dirty)"
		}
		logger.Printf("storefront schema at version %d%s", version, state)
	}
	return nil
}

// newMigrator opens a dedicated connection; the migration driver takes
// ownership of it, so the pool connections stay untouched.
func newMigrator(dsn string) (*migrate.Migrate, func(), error) {
	conn, err := openDB(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open db for migrations: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("load embedded migrations: %w", err)
	}

	driver, err := postgres.WithInstance(conn, &postgres.Config{})
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, func() { conn.Close() }, nil
}
