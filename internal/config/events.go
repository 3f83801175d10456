package config

import (
	"fmt"
	"os"
	"time"
)

const (
	EnvEventsRedisURL        = "CREDITREAD_EVENTS_REDIS_URL"
	EnvEventsChannel         = "CREDITREAD_EVENTS_CHANNEL"
	EnvEventsCallbackTimeout = "CREDITREAD_EVENTS_CALLBACK_TIMEOUT"
)

// EventsConfig holds run event publishing settings. An empty RedisURL
// disables Redis publishing; callback webhooks are always delivered.
type EventsConfig struct {
	RedisURL        string `toml:"redis_url"`
	Channel         string `toml:"channel"`
	CallbackTimeout string `toml:"callback_timeout"`
}

// CallbackTimeoutDuration returns CallbackTimeout as a time.Duration.
func (c *EventsConfig) CallbackTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.CallbackTimeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *EventsConfig) Finalize() error {
	if c.Channel == "" {
		c.Channel = "creditread:runs"
	}
	if c.CallbackTimeout == "" {
		c.CallbackTimeout = "10s"
	}

	if v := os.Getenv(EnvEventsRedisURL); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv(EnvEventsChannel); v != "" {
		c.Channel = v
	}
	if v := os.Getenv(EnvEventsCallbackTimeout); v != "" {
		c.CallbackTimeout = v
	}

	if _, err := time.ParseDuration(c.CallbackTimeout); err != nil {
		return fmt.Errorf("invalid callback_timeout: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *EventsConfig) Merge(overlay *EventsConfig) {
	if overlay.RedisURL != "" {
		c.RedisURL = overlay.RedisURL
	}
	if overlay.Channel != "" {
		c.Channel = overlay.Channel
	}
	if overlay.CallbackTimeout != "" {
		c.CallbackTimeout = overlay.CallbackTimeout
	}
}
