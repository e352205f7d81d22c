package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/JaimeStill/attest/pkg/formatting"
	"github.com/JaimeStill/attest/pkg/middleware"
	"github.com/JaimeStill/attest/pkg/openapi"
	"github.com/JaimeStill/attest/pkg/pagination"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "ATTEST_CORS_ENABLED",
	Origins:          "ATTEST_CORS_ORIGINS",
	AllowedMethods:   "ATTEST_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "ATTEST_CORS_ALLOWED_HEADERS",
	ExposedHeaders:   "ATTEST_CORS_EXPOSED_HEADERS",
	AllowCredentials: "ATTEST_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "ATTEST_CORS_MAX_AGE",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "ATTEST_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "ATTEST_PAGINATION_MAX_PAGE_SIZE",
}

var openapiEnv = &openapi.ConfigEnv{
	Title:       "ATTEST_OPENAPI_TITLE",
	Description: "ATTEST_OPENAPI_DESCRIPTION",
	Servers:     "ATTEST_OPENAPI_SERVERS",
}

// APIConfig holds API routing, CORS, pagination, and OpenAPI settings.
type APIConfig struct {
	BasePath      string                `toml:"base_path"`
	MaxUploadSize string                `toml:"max_upload_size"`
	CORS          middleware.CORSConfig `toml:"cors"`
	Pagination    pagination.Config     `toml:"pagination"`
	OpenAPI       openapi.Config        `toml:"openapi"`
}

// MaxUploadSizeBytes returns MaxUploadSize in bytes, falling back to 50MB
// for a config that skipped Finalize.
func (c *APIConfig) MaxUploadSizeBytes() int64 {
	size, err := formatting.ParseBytes(c.MaxUploadSize)
	if err != nil {
		return 50 * 1024 * 1024
	}
	return size
}

// Finalize applies defaults, environment overrides and validation to the
// API settings and each nested config.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	if err := c.validate(); err != nil {
		return err
	}

	for _, nested := range []struct {
		name     string
		finalize func() error
	}{
		{"cors", func() error { return c.CORS.Finalize(corsEnv) }},
		{"pagination", func() error { return c.Pagination.Finalize(paginationEnv) }},
		{"openapi", func() error { return c.OpenAPI.Finalize(openapiEnv) }},
	} {
		if err := nested.finalize(); err != nil {
			return fmt.Errorf("%s: %w", nested.name, err)
		}
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxUploadSize != "" {
		c.MaxUploadSize = overlay.MaxUploadSize
	}

	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
	c.OpenAPI.Merge(&overlay.OpenAPI)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = "50MB"
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv("ATTEST_API_BASE_PATH"); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv("ATTEST_API_MAX_UPLOAD_SIZE"); v != "" {
		c.MaxUploadSize = v
	}
}

func (c *APIConfig) validate() error {
	if len(c.BasePath) < 2 || c.BasePath[0] != '/' || strings.Contains(c.BasePath[1:], "/") {
		return fmt.Errorf("base_path %q must be a single path segment such as /api", c.BasePath)
	}
	size, err := formatting.ParseBytes(c.MaxUploadSize)
	if err != nil {
		return fmt.Errorf("max_upload_size: %w", err)
	}
	if size <= 0 {
		return fmt.Errorf("max_upload_size must be positive, got %s", c.MaxUploadSize)
	}
	return nil
}
