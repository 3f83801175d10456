package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	EnvStructuredAttempts          = "CREDITREAD_STRUCTURED_ATTEMPTS"
	EnvStructuredRepairAttempts    = "CREDITREAD_STRUCTURED_REPAIR_ATTEMPTS"
	EnvStructuredBackoffInitial    = "CREDITREAD_STRUCTURED_BACKOFF_INITIAL"
	EnvStructuredBackoffMax        = "CREDITREAD_STRUCTURED_BACKOFF_MAX"
	EnvStructuredBackoffMultiplier = "CREDITREAD_STRUCTURED_BACKOFF_MULTIPLIER"
	EnvStructuredAttemptTimeout    = "CREDITREAD_STRUCTURED_ATTEMPT_TIMEOUT"
	EnvStructuredMaxPromptChars    = "CREDITREAD_STRUCTURED_MAX_PROMPT_CHARS"
	EnvStructuredRateLimit         = "CREDITREAD_STRUCTURED_RATE_LIMIT"
	EnvStructuredRateBurst         = "CREDITREAD_STRUCTURED_RATE_BURST"
)

// StructuredConfig holds the retry, repair, and rate limit policy for
// model-driven extraction.
type StructuredConfig struct {
	Attempts          int     `toml:"attempts"`
	RepairAttempts    int     `toml:"repair_attempts"`
	BackoffInitial    string  `toml:"backoff_initial"`
	BackoffMax        string  `toml:"backoff_max"`
	BackoffMultiplier float64 `toml:"backoff_multiplier"`
	AttemptTimeout    string  `toml:"attempt_timeout"`
	MaxPromptChars    int     `toml:"max_prompt_chars"`
	// RateLimit caps backend requests per second across all runs. Zero disables the limit.
	RateLimit float64 `toml:"rate_limit"`
	RateBurst int     `toml:"rate_burst"`
}

// BackoffInitialDuration returns BackoffInitial as a time.Duration.
func (c *StructuredConfig) BackoffInitialDuration() time.Duration {
	d, _ := time.ParseDuration(c.BackoffInitial)
	return d
}

// BackoffMaxDuration returns BackoffMax as a time.Duration.
func (c *StructuredConfig) BackoffMaxDuration() time.Duration {
	d, _ := time.ParseDuration(c.BackoffMax)
	return d
}

// AttemptTimeoutDuration returns AttemptTimeout as a time.Duration.
func (c *StructuredConfig) AttemptTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.AttemptTimeout)
	return d
}

// Backoff returns the wait before retry number attempt (1-based): the
// initial delay grown by the multiplier per attempt, capped at BackoffMax.
func (c *StructuredConfig) Backoff(attempt int) time.Duration {
	d := float64(c.BackoffInitialDuration())
	ceiling := float64(c.BackoffMaxDuration())
	for i := 1; i < attempt; i++ {
		d *= c.BackoffMultiplier
		if d >= ceiling {
			return c.BackoffMaxDuration()
		}
	}
	return time.Duration(min(d, ceiling))
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *StructuredConfig) Finalize() error {
	c.loadDefaults()
	if err := c.loadEnv(); err != nil {
		return err
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *StructuredConfig) Merge(overlay *StructuredConfig) {
	if overlay.Attempts != 0 {
		c.Attempts = overlay.Attempts
	}
	if overlay.RepairAttempts != 0 {
		c.RepairAttempts = overlay.RepairAttempts
	}
	if overlay.BackoffInitial != "" {
		c.BackoffInitial = overlay.BackoffInitial
	}
	if overlay.BackoffMax != "" {
		c.BackoffMax = overlay.BackoffMax
	}
	if overlay.BackoffMultiplier != 0 {
		c.BackoffMultiplier = overlay.BackoffMultiplier
	}
	if overlay.AttemptTimeout != "" {
		c.AttemptTimeout = overlay.AttemptTimeout
	}
	if overlay.MaxPromptChars != 0 {
		c.MaxPromptChars = overlay.MaxPromptChars
	}
	if overlay.RateLimit != 0 {
		c.RateLimit = overlay.RateLimit
	}
	if overlay.RateBurst != 0 {
		c.RateBurst = overlay.RateBurst
	}
}

func (c *StructuredConfig) loadDefaults() {
	if c.Attempts == 0 {
		c.Attempts = 3
	}
	if c.RepairAttempts == 0 {
		c.RepairAttempts = 3
	}
	if c.BackoffInitial == "" {
		c.BackoffInitial = "1s"
	}
	if c.BackoffMax == "" {
		c.BackoffMax = "30s"
	}
	if c.BackoffMultiplier == 0 {
		c.BackoffMultiplier = 2
	}
	if c.AttemptTimeout == "" {
		c.AttemptTimeout = "5m"
	}
	if c.MaxPromptChars == 0 {
		c.MaxPromptChars = 60000
	}
	if c.RateBurst == 0 {
		c.RateBurst = 1
	}
}

func (c *StructuredConfig) loadEnv() error {
	err := errors.Join(
		envInt(EnvStructuredAttempts, &c.Attempts),
		envInt(EnvStructuredRepairAttempts, &c.RepairAttempts),
		envInt(EnvStructuredMaxPromptChars, &c.MaxPromptChars),
		envInt(EnvStructuredRateBurst, &c.RateBurst),
		envFloat(EnvStructuredBackoffMultiplier, &c.BackoffMultiplier),
		envFloat(EnvStructuredRateLimit, &c.RateLimit),
	)

	if v := os.Getenv(EnvStructuredBackoffInitial); v != "" {
		c.BackoffInitial = v
	}
	if v := os.Getenv(EnvStructuredBackoffMax); v != "" {
		c.BackoffMax = v
	}
	if v := os.Getenv(EnvStructuredAttemptTimeout); v != "" {
		c.AttemptTimeout = v
	}
	return err
}

func (c *StructuredConfig) validate() error {
	if c.Attempts < 1 {
		return fmt.Errorf("attempts must be positive: %d", c.Attempts)
	}
	if c.RepairAttempts < 1 {
		return fmt.Errorf("repair_attempts must be positive: %d", c.RepairAttempts)
	}
	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("backoff_multiplier must be at least 1: %v", c.BackoffMultiplier)
	}
	if c.MaxPromptChars < 1 {
		return fmt.Errorf("max_prompt_chars must be positive: %d", c.MaxPromptChars)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative: %v", c.RateLimit)
	}
	if c.RateBurst < 1 {
		return fmt.Errorf("rate_burst must be positive: %d", c.RateBurst)
	}
	if _, err := time.ParseDuration(c.BackoffInitial); err != nil {
		return fmt.Errorf("invalid backoff_initial: %w", err)
	}
	if _, err := time.ParseDuration(c.BackoffMax); err != nil {
		return fmt.Errorf("invalid backoff_max: %w", err)
	}
	if _, err := time.ParseDuration(c.AttemptTimeout); err != nil {
		return fmt.Errorf("invalid attempt_timeout: %w", err)
	}
	return nil
}
