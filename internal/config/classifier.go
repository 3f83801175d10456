package config

import (
	"errors"
	"fmt"
)

const (
	EnvClassifierPages         = "CREDITREAD_CLASSIFIER_PAGES"
	EnvClassifierMinConfidence = "CREDITREAD_CLASSIFIER_MIN_CONFIDENCE"
	EnvClassifierEpsilon       = "CREDITREAD_CLASSIFIER_EPSILON"
)

// ClassifierConfig holds format classification thresholds.
type ClassifierConfig struct {
	// Pages is the number of leading pages scanned for signature tokens.
	Pages int `toml:"pages"`
	// MinConfidence is the lowest best score accepted as a known format.
	MinConfidence float64 `toml:"min_confidence"`
	// Epsilon is the smallest margin between the two best scores that
	// still counts as a decision.
	Epsilon float64 `toml:"epsilon"`
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ClassifierConfig) Finalize() error {
	c.loadDefaults()
	if err := c.loadEnv(); err != nil {
		return err
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ClassifierConfig) Merge(overlay *ClassifierConfig) {
	if overlay.Pages != 0 {
		c.Pages = overlay.Pages
	}
	if overlay.MinConfidence != 0 {
		c.MinConfidence = overlay.MinConfidence
	}
	if overlay.Epsilon != 0 {
		c.Epsilon = overlay.Epsilon
	}
}

func (c *ClassifierConfig) loadDefaults() {
	if c.Pages == 0 {
		c.Pages = 3
	}
	if c.MinConfidence == 0 {
		c.MinConfidence = 0.4
	}
	if c.Epsilon == 0 {
		c.Epsilon = 0.05
	}
}

func (c *ClassifierConfig) loadEnv() error {
	return errors.Join(
		envInt(EnvClassifierPages, &c.Pages),
		envFloat(EnvClassifierMinConfidence, &c.MinConfidence),
		envFloat(EnvClassifierEpsilon, &c.Epsilon),
	)
}

func (c *ClassifierConfig) validate() error {
	if c.Pages < 1 {
		return fmt.Errorf("pages must be positive: %d", c.Pages)
	}
	if c.MinConfidence <= 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be in (0, 1]: %v", c.MinConfidence)
	}
	if c.Epsilon < 0 || c.Epsilon >= 1 {
		return fmt.Errorf("epsilon must be in [0, 1): %v", c.Epsilon)
	}
	return nil
}
