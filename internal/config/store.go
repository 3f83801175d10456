package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	EnvStoreDriver  = "CREDITREAD_STORE_DRIVER"
	EnvStoreMigrate = "CREDITREAD_STORE_MIGRATE"
)

// Task store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// StoreConfig selects the run store. The postgres and sqlite drivers use
// the database section for connection settings.
type StoreConfig struct {
	Driver string `toml:"driver"`
	// Migrate applies the embedded schema at startup.
	Migrate *bool `toml:"migrate"`
}

// UsesDatabase reports whether the store needs a database connection.
func (c *StoreConfig) UsesDatabase() bool {
	return c.Driver == StorePostgres || c.Driver == StoreSQLite
}

// MigrateEnabled reports whether migrations run at startup.
func (c *StoreConfig) MigrateEnabled() bool {
	return c.Migrate == nil || *c.Migrate
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *StoreConfig) Finalize() error {
	if c.Driver == "" {
		c.Driver = StoreSQLite
	}
	if v := os.Getenv(EnvStoreDriver); v != "" {
		c.Driver = v
	}
	if v := os.Getenv(EnvStoreMigrate); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvStoreMigrate, err)
		}
		c.Migrate = &b
	}

	switch c.Driver {
	case StoreMemory, StorePostgres, StoreSQLite:
		return nil
	default:
		return fmt.Errorf("unsupported driver: %q", c.Driver)
	}
}

// Merge overwrites non-zero fields from overlay.
func (c *StoreConfig) Merge(overlay *StoreConfig) {
	if overlay.Driver != "" {
		c.Driver = overlay.Driver
	}
	if overlay.Migrate != nil {
		c.Migrate = overlay.Migrate
	}
}
