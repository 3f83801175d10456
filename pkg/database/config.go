package database

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Drivers accepted by Config.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds connection parameters for PostgreSQL or an embedded SQLite
// file. Path is only read for SQLite; Host through SSLMode only for
// PostgreSQL.
type Config struct {
	Driver          string `toml:"driver"`
	Path            string `toml:"path"`
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	Name            string `toml:"name"`
	User            string `toml:"user"`
	Password        string `toml:"password"`
	SSLMode         string `toml:"ssl_mode"`
	MaxOpenConns    int    `toml:"max_open_conns"`
	MaxIdleConns    int    `toml:"max_idle_conns"`
	ConnMaxLifetime string `toml:"conn_max_lifetime"`
	ConnTimeout     string `toml:"conn_timeout"`
}

// Env names the environment variable for each Config field. Empty names
// are skipped.
type Env struct {
	Driver          string
	Path            string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    string
	MaxIdleConns    string
	ConnMaxLifetime string
	ConnTimeout     string
}

// strings pairs each string setting with its env name and default.
func (c *Config) strings(env *Env) []struct {
	dst      *string
	env, def string
} {
	return []struct {
		dst      *string
		env, def string
	}{
		{&c.Driver, env.Driver, DriverPostgres},
		{&c.Path, env.Path, "creditread.db"},
		{&c.Host, env.Host, "localhost"},
		{&c.Name, env.Name, ""},
		{&c.User, env.User, ""},
		{&c.Password, env.Password, ""},
		{&c.SSLMode, env.SSLMode, "disable"},
		{&c.ConnMaxLifetime, env.ConnMaxLifetime, "15m"},
		{&c.ConnTimeout, env.ConnTimeout, "5s"},
	}
}

func (c *Config) ints(env *Env) []struct {
	dst *int
	env string
	def int
} {
	return []struct {
		dst *int
		env string
		def int
	}{
		{&c.Port, env.Port, 5432},
		{&c.MaxOpenConns, env.MaxOpenConns, 25},
		{&c.MaxIdleConns, env.MaxIdleConns, 5},
	}
}

func (c *Config) ConnMaxLifetimeDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnMaxLifetime)
	return d
}

func (c *Config) ConnTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnTimeout)
	return d
}

// DriverName returns the database/sql driver registered for Driver.
func (c *Config) DriverName() string {
	if c.Driver == DriverSQLite {
		return "sqlite"
	}
	return "pgx"
}

// Dsn returns the connection string for the configured driver. SQLite
// runs in WAL mode with a busy timeout so readers do not fail while the
// single writer holds the lock.
func (c *Config) Dsn() string {
	if c.Driver == DriverSQLite {
		return "file:" + c.Path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	if env == nil {
		env = &Env{}
	}

	for _, f := range c.strings(env) {
		if *f.dst == "" {
			*f.dst = f.def
		}
		if f.env != "" {
			if v := os.Getenv(f.env); v != "" {
				*f.dst = v
			}
		}
	}
	for _, f := range c.ints(env) {
		if *f.dst == 0 {
			*f.dst = f.def
		}
		if f.env == "" {
			continue
		}
		if v := os.Getenv(f.env); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", f.env, err)
			}
			*f.dst = n
		}
	}

	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	none := &Env{}
	theirs := overlay.strings(none)
	for i, f := range c.strings(none) {
		if v := *theirs[i].dst; v != "" {
			*f.dst = v
		}
	}
	theirInts := overlay.ints(none)
	for i, f := range c.ints(none) {
		if v := *theirInts[i].dst; v != 0 {
			*f.dst = v
		}
	}
}

func (c *Config) validate() error {
	switch c.Driver {
	case DriverPostgres:
		if c.Name == "" {
			return fmt.Errorf("name required")
		}
		if c.User == "" {
			return fmt.Errorf("user required")
		}
	case DriverSQLite:
		if c.Path == "" {
			return fmt.Errorf("path required")
		}
	default:
		return fmt.Errorf("unsupported driver: %q", c.Driver)
	}
	if _, err := time.ParseDuration(c.ConnMaxLifetime); err != nil {
		return fmt.Errorf("invalid conn_max_lifetime: %w", err)
	}
	if _, err := time.ParseDuration(c.ConnTimeout); err != nil {
		return fmt.Errorf("invalid conn_timeout: %w", err)
	}
	return nil
}
