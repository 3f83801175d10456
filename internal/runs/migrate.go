package runs

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	mdatabase "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/JaimeStill/creditread/pkg/database"
)

//go:embed migrations
var migrations embed.FS

// Migrations returns the migration files for driver, rooted so that
// iofs.New(fsys, ".") reads them.
func Migrations(driver string) (fs.FS, error) {
	switch driver {
	case database.DriverPostgres, database.DriverSQLite:
		return fs.Sub(migrations, "migrations/"+driver)
	}
	return nil, fmt.Errorf("no migrations for driver %q", driver)
}

// NewMigrator wraps db in a migrator over the embedded migrations for
// driver. Closing the migrator closes db.
func NewMigrator(db *sql.DB, driver string) (*migrate.Migrate, error) {
	fsys, err := Migrations(driver)
	if err != nil {
		return nil, err
	}

	source, err := iofs.New(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}

	var target mdatabase.Driver
	switch driver {
	case database.DriverSQLite:
		target, err = sqlite.WithInstance(db, &sqlite.Config{})
	default:
		target, err = postgres.WithInstance(db, &postgres.Config{})
	}
	if err != nil {
		return nil, fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, driver, target)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

// Migrate applies every pending up migration on db. The connection stays
// open.
func Migrate(db *sql.DB, driver string) error {
	m, err := NewMigrator(db, driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
