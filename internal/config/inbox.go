package config

import (
	"fmt"
	"os"
	"time"
)

const (
	EnvInboxDirectory = "CREDITREAD_INBOX_DIRECTORY"
	EnvInboxSettle    = "CREDITREAD_INBOX_SETTLE"
)

// InboxConfig holds drop-box directory ingestion settings. An empty
// Directory disables the watcher.
type InboxConfig struct {
	Directory string `toml:"directory"`
	// Settle is how long a file must stay unchanged before it is submitted.
	Settle string `toml:"settle"`
}

// Enabled reports whether a directory is configured.
func (c *InboxConfig) Enabled() bool {
	return c.Directory != ""
}

// SettleDuration returns Settle as a time.Duration.
func (c *InboxConfig) SettleDuration() time.Duration {
	d, _ := time.ParseDuration(c.Settle)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *InboxConfig) Finalize() error {
	if c.Settle == "" {
		c.Settle = "2s"
	}
	if v := os.Getenv(EnvInboxDirectory); v != "" {
		c.Directory = v
	}
	if v := os.Getenv(EnvInboxSettle); v != "" {
		c.Settle = v
	}

	if _, err := time.ParseDuration(c.Settle); err != nil {
		return fmt.Errorf("invalid settle: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *InboxConfig) Merge(overlay *InboxConfig) {
	if overlay.Directory != "" {
		c.Directory = overlay.Directory
	}
	if overlay.Settle != "" {
		c.Settle = overlay.Settle
	}
}
