package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	EnvPipelineWorkers         = "CREDITREAD_PIPELINE_WORKERS"
	EnvPipelineQueueSize       = "CREDITREAD_PIPELINE_QUEUE_SIZE"
	EnvPipelineExtractTimeout  = "CREDITREAD_PIPELINE_EXTRACT_TIMEOUT"
	EnvPipelineClassifyTimeout = "CREDITREAD_PIPELINE_CLASSIFY_TIMEOUT"
	EnvPipelineValidateTimeout = "CREDITREAD_PIPELINE_VALIDATE_TIMEOUT"
	EnvPipelineNotifyTimeout   = "CREDITREAD_PIPELINE_NOTIFY_TIMEOUT"
)

// PipelineConfig holds worker pool sizing and per-stage timeouts.
type PipelineConfig struct {
	Workers         int    `toml:"workers"`
	QueueSize       int    `toml:"queue_size"`
	ExtractTimeout  string `toml:"extract_timeout"`
	ClassifyTimeout string `toml:"classify_timeout"`
	ValidateTimeout string `toml:"validate_timeout"`
	// NotifyTimeout bounds each post-terminal side effect (events, callback, CRM).
	NotifyTimeout string `toml:"notify_timeout"`
}

// ExtractTimeoutDuration returns ExtractTimeout as a time.Duration.
func (c *PipelineConfig) ExtractTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ExtractTimeout)
	return d
}

// ClassifyTimeoutDuration returns ClassifyTimeout as a time.Duration.
func (c *PipelineConfig) ClassifyTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ClassifyTimeout)
	return d
}

// ValidateTimeoutDuration returns ValidateTimeout as a time.Duration.
func (c *PipelineConfig) ValidateTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ValidateTimeout)
	return d
}

// NotifyTimeoutDuration returns NotifyTimeout as a time.Duration.
func (c *PipelineConfig) NotifyTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.NotifyTimeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *PipelineConfig) Finalize() error {
	c.loadDefaults()
	if err := c.loadEnv(); err != nil {
		return err
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *PipelineConfig) Merge(overlay *PipelineConfig) {
	if overlay.Workers != 0 {
		c.Workers = overlay.Workers
	}
	if overlay.QueueSize != 0 {
		c.QueueSize = overlay.QueueSize
	}
	if overlay.ExtractTimeout != "" {
		c.ExtractTimeout = overlay.ExtractTimeout
	}
	if overlay.ClassifyTimeout != "" {
		c.ClassifyTimeout = overlay.ClassifyTimeout
	}
	if overlay.ValidateTimeout != "" {
		c.ValidateTimeout = overlay.ValidateTimeout
	}
	if overlay.NotifyTimeout != "" {
		c.NotifyTimeout = overlay.NotifyTimeout
	}
}

func (c *PipelineConfig) loadDefaults() {
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.QueueSize == 0 {
		c.QueueSize = 64
	}
	if c.ExtractTimeout == "" {
		c.ExtractTimeout = "2m"
	}
	if c.ClassifyTimeout == "" {
		c.ClassifyTimeout = "10s"
	}
	if c.ValidateTimeout == "" {
		c.ValidateTimeout = "10s"
	}
	if c.NotifyTimeout == "" {
		c.NotifyTimeout = "30s"
	}
}

func (c *PipelineConfig) loadEnv() error {
	if err := errors.Join(
		envInt(EnvPipelineWorkers, &c.Workers),
		envInt(EnvPipelineQueueSize, &c.QueueSize),
	); err != nil {
		return err
	}
	if v := os.Getenv(EnvPipelineExtractTimeout); v != "" {
		c.ExtractTimeout = v
	}
	if v := os.Getenv(EnvPipelineClassifyTimeout); v != "" {
		c.ClassifyTimeout = v
	}
	if v := os.Getenv(EnvPipelineValidateTimeout); v != "" {
		c.ValidateTimeout = v
	}
	if v := os.Getenv(EnvPipelineNotifyTimeout); v != "" {
		c.NotifyTimeout = v
	}
	return nil
}

func (c *PipelineConfig) validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive: %d", c.Workers)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue_size must be positive: %d", c.QueueSize)
	}
	for name, v := range map[string]string{
		"extract_timeout":  c.ExtractTimeout,
		"classify_timeout": c.ClassifyTimeout,
		"validate_timeout": c.ValidateTimeout,
		"notify_timeout":   c.NotifyTimeout,
	} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}
