package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/creditread/pkg/database"
	"github.com/JaimeStill/creditread/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvCreditreadEnv             = "CREDITREAD_ENV"
	EnvCreditreadShutdownTimeout = "CREDITREAD_SHUTDOWN_TIMEOUT"
	EnvCreditreadVersion         = "CREDITREAD_VERSION"
)

var databaseEnv = &database.Env{
	Driver:          "CREDITREAD_DB_DRIVER",
	Path:            "CREDITREAD_DB_PATH",
	Host:            "CREDITREAD_DB_HOST",
	Port:            "CREDITREAD_DB_PORT",
	Name:            "CREDITREAD_DB_NAME",
	User:            "CREDITREAD_DB_USER",
	Password:        "CREDITREAD_DB_PASSWORD",
	SSLMode:         "CREDITREAD_DB_SSL_MODE",
	MaxOpenConns:    "CREDITREAD_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "CREDITREAD_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "CREDITREAD_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "CREDITREAD_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "CREDITREAD_STORAGE_CONTAINER_NAME",
	ConnectionString: "CREDITREAD_STORAGE_CONNECTION_STRING",
	AccountURL:       "CREDITREAD_STORAGE_ACCOUNT_URL",
	Directory:        "CREDITREAD_STORAGE_DIRECTORY",
	MaxRetries:       "CREDITREAD_STORAGE_MAX_RETRIES",
}

// Config is the root configuration for the creditread service.
type Config struct {
	Server          ServerConfig         `toml:"server"`
	Database        database.Config      `toml:"database"`
	Storage         storage.Config       `toml:"storage"`
	API             APIConfig            `toml:"api"`
	Agent           gaconfig.AgentConfig `toml:"agent"`
	Catalog         CatalogConfig        `toml:"catalog"`
	Classifier      ClassifierConfig     `toml:"classifier"`
	Extractor       ExtractorConfig      `toml:"extractor"`
	Structured      StructuredConfig     `toml:"structured"`
	Pipeline        PipelineConfig       `toml:"pipeline"`
	Store           StoreConfig          `toml:"store"`
	Events          EventsConfig         `toml:"events"`
	CRM             CRMConfig            `toml:"crm"`
	Inbox           InboxConfig          `toml:"inbox"`
	Logging         LoggingConfig        `toml:"logging"`
	ShutdownTimeout string               `toml:"shutdown_timeout"`
	Version         string               `toml:"version"`
}

// Env returns the CREDITREAD_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvCreditreadEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	return parseDuration(c.ShutdownTimeout)
}

// parseDuration reads a duration that Finalize has already validated.
func parseDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// envInt and envFloat overwrite dst when key is set. A value that does not
// parse is an error naming the variable.
func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Agent.Merge(&overlay.Agent)
	c.Catalog.Merge(&overlay.Catalog)
	c.Classifier.Merge(&overlay.Classifier)
	c.Extractor.Merge(&overlay.Extractor)
	c.Structured.Merge(&overlay.Structured)
	c.Pipeline.Merge(&overlay.Pipeline)
	c.Store.Merge(&overlay.Store)
	c.Events.Merge(&overlay.Events)
	c.CRM.Merge(&overlay.CRM)
	c.Inbox.Merge(&overlay.Inbox)
	c.Logging.Merge(&overlay.Logging)
}

// Finalize applies defaults, environment overrides, and validation to the
// root values and every section. Load calls it; tools that build a Config
// in code call it directly.
func (c *Config) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}

	if err := c.Store.Finalize(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if c.Store.UsesDatabase() {
		c.Database.Driver = c.Store.Driver
		if err := c.Database.Finalize(databaseEnv); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	sections := []struct {
		name     string
		finalize func() error
	}{
		{"server", c.Server.Finalize},
		{"storage", func() error { return c.Storage.Finalize(storageEnv) }},
		{"api", c.API.Finalize},
		{"agent", func() error { return FinalizeAgent(&c.Agent) }},
		{"catalog", c.Catalog.Finalize},
		{"classifier", c.Classifier.Finalize},
		{"extractor", c.Extractor.Finalize},
		{"structured", c.Structured.Finalize},
		{"pipeline", c.Pipeline.Finalize},
		{"events", c.Events.Finalize},
		{"crm", c.CRM.Finalize},
		{"inbox", c.Inbox.Finalize},
		{"logging", c.Logging.Finalize},
	}
	for _, s := range sections {
		if err := s.finalize(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvCreditreadShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvCreditreadVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvCreditreadEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
