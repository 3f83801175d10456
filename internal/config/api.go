package config

import (
	"cmp"
	"fmt"
	"os"
	"strings"

	"github.com/JaimeStill/creditread/pkg/formatting"
	"github.com/JaimeStill/creditread/pkg/middleware"
	"github.com/JaimeStill/creditread/pkg/pagination"
)

const (
	EnvAPIBasePath      = "CREDITREAD_API_BASE_PATH"
	EnvAPIMaxUploadSize = "CREDITREAD_API_MAX_UPLOAD_SIZE"
)

const defaultMaxUpload = 50 << 20

// APIConfig holds the mount point of the HTTP API, the upload limit for
// submitted reports, and the nested CORS and pagination settings.
type APIConfig struct {
	BasePath      string                `toml:"base_path"`
	MaxUploadSize string                `toml:"max_upload_size"`
	CORS          middleware.CORSConfig `toml:"cors"`
	Pagination    pagination.Config     `toml:"pagination"`
}

// MaxUploadSizeBytes is valid once Finalize has succeeded.
func (c *APIConfig) MaxUploadSizeBytes() int64 {
	if n, err := formatting.ParseBytes(c.MaxUploadSize); err == nil {
		return n
	}
	return defaultMaxUpload
}

func (c *APIConfig) Finalize() error {
	if v := os.Getenv(EnvAPIBasePath); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv(EnvAPIMaxUploadSize); v != "" {
		c.MaxUploadSize = v
	}
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = formatting.FormatBytes(defaultMaxUpload)
	}

	if !strings.HasPrefix(c.BasePath, "/") {
		return fmt.Errorf("base_path %q must start with /", c.BasePath)
	}
	c.BasePath = strings.TrimSuffix(c.BasePath, "/")

	n, err := formatting.ParseBytes(c.MaxUploadSize)
	if err != nil {
		return fmt.Errorf("max_upload_size: %w", err)
	}
	if n <= 0 {
		return fmt.Errorf("max_upload_size must be positive")
	}

	if err := c.CORS.Finalize(&middleware.CORSEnv{
		Enabled:          "CREDITREAD_CORS_ENABLED",
		Origins:          "CREDITREAD_CORS_ORIGINS",
		AllowedMethods:   "CREDITREAD_CORS_ALLOWED_METHODS",
		AllowedHeaders:   "CREDITREAD_CORS_ALLOWED_HEADERS",
		AllowCredentials: "CREDITREAD_CORS_ALLOW_CREDENTIALS",
		MaxAge:           "CREDITREAD_CORS_MAX_AGE",
	}); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(&pagination.ConfigEnv{
		DefaultPageSize: "CREDITREAD_PAGINATION_DEFAULT_PAGE_SIZE",
		MaxPageSize:     "CREDITREAD_PAGINATION_MAX_PAGE_SIZE",
	}); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	return nil
}

func (c *APIConfig) Merge(overlay *APIConfig) {
	c.BasePath = cmp.Or(overlay.BasePath, c.BasePath)
	c.MaxUploadSize = cmp.Or(overlay.MaxUploadSize, c.MaxUploadSize)
	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
}
