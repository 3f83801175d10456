package config

import (
	"fmt"
	"maps"
	"net/url"
	"os"
	"strconv"
	"time"
)

const (
	EnvCRMWebhookURL = "CREDITREAD_CRM_WEBHOOK_URL"
	EnvCRMTimeout    = "CREDITREAD_CRM_TIMEOUT"
	EnvCRMComment    = "CREDITREAD_CRM_COMMENT"
)

// CRMConfig holds the Bitrix24 incoming webhook settings. An empty
// WebhookURL disables the CRM push.
type CRMConfig struct {
	WebhookURL string `toml:"webhook_url"`
	Timeout    string `toml:"timeout"`
	// Fields maps record field names to Bitrix deal fields, e.g.
	// full_name = "UF_CRM_FULL_NAME".
	Fields map[string]string `toml:"fields"`
	// Comment adds a timeline summary to the deal after the update.
	Comment *bool `toml:"comment"`
}

// Enabled reports whether a webhook is configured.
func (c *CRMConfig) Enabled() bool {
	return c.WebhookURL != ""
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *CRMConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// CommentEnabled reports whether timeline comments are posted.
func (c *CRMConfig) CommentEnabled() bool {
	return c.Comment == nil || *c.Comment
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *CRMConfig) Finalize() error {
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
	if len(c.Fields) == 0 {
		c.Fields = map[string]string{
			"full_name":       "UF_CRM_CLIENT_NAME",
			"birth_date":      "UF_CRM_BIRTH_DATE",
			"credit_score":    "UF_CRM_CREDIT_SCORE",
			"total_debt":      "UF_CRM_TOTAL_DEBT",
			"active_accounts": "UF_CRM_ACTIVE_ACCOUNTS",
		}
	}

	if v := os.Getenv(EnvCRMWebhookURL); v != "" {
		c.WebhookURL = v
	}
	if v := os.Getenv(EnvCRMTimeout); v != "" {
		c.Timeout = v
	}
	if v := os.Getenv(EnvCRMComment); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Comment = &b
		}
	}

	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	if c.WebhookURL != "" {
		u, err := url.Parse(c.WebhookURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid webhook_url: %q", c.WebhookURL)
		}
	}
	return nil
}

// Merge overwrites non-zero fields from overlay. Field mappings are merged key by key.
func (c *CRMConfig) Merge(overlay *CRMConfig) {
	if overlay.WebhookURL != "" {
		c.WebhookURL = overlay.WebhookURL
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.Comment != nil {
		c.Comment = overlay.Comment
	}
	if len(overlay.Fields) > 0 {
		if c.Fields == nil {
			c.Fields = make(map[string]string, len(overlay.Fields))
		}
		maps.Copy(c.Fields, overlay.Fields)
	}
}
