// Package migrations applies the embedded schema via golang-migrate, bound
// to the Postgres driver the repository uses. This gives the
// golang-migrate/migrate/v4 dependency a concrete home rather than leaving
// it an unwired line in go.mod.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed *.sql
var files embed.FS

// Apply runs all pending migrations against db. It is idempotent: running
// it again on an up-to-date schema is a no-op.
func Apply(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("postgres migration driver: %w", err)
	}
	source, err := iofs.New(files, ".")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "worldcore", driver)
	if err != nil {
		return fmt.Errorf("migration runner: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
