package config

import (
	"fmt"
	"os"
)

const EnvCatalogOverrides = "CREDITREAD_CATALOG_OVERRIDES"

// CatalogConfig points at an optional YAML file that overrides bureau
// signatures and extraction instructions.
type CatalogConfig struct {
	Overrides string `toml:"overrides"`
}

// Finalize applies environment variable overrides and checks that a
// configured overrides file exists.
func (c *CatalogConfig) Finalize() error {
	if v := os.Getenv(EnvCatalogOverrides); v != "" {
		c.Overrides = v
	}
	if c.Overrides != "" {
		if _, err := os.Stat(c.Overrides); err != nil {
			return fmt.Errorf("overrides: %w", err)
		}
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *CatalogConfig) Merge(overlay *CatalogConfig) {
	if overlay.Overrides != "" {
		c.Overrides = overlay.Overrides
	}
}
