package middleware

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
)

// CORSConfig holds the cross-origin policy of the API. It has no effect
// unless Enabled is set and at least one origin is listed.
type CORSConfig struct {
	Enabled          bool     `toml:"enabled"`
	Origins          []string `toml:"origins"`
	AllowedMethods   []string `toml:"allowed_methods"`
	AllowedHeaders   []string `toml:"allowed_headers"`
	ExposedHeaders   []string `toml:"exposed_headers"`
	AllowCredentials bool     `toml:"allow_credentials"`
	MaxAge           int      `toml:"max_age"`
}

// CORSEnv names the environment variables that override CORSConfig.
// List values are comma-separated.
type CORSEnv struct {
	Enabled          string
	Origins          string
	AllowedMethods   string
	AllowedHeaders   string
	ExposedHeaders   string
	AllowCredentials string
	MaxAge           string
}

// Finalize applies defaults, then environment overrides, then validation.
func (c *CORSConfig) Finalize(env *CORSEnv) error {
	c.loadDefaults()
	if env != nil {
		if err := c.loadEnv(env); err != nil {
			return err
		}
	}
	return c.validate()
}

// Merge overwrites fields from overlay. The flags always apply, the lists
// only when set.
func (c *CORSConfig) Merge(overlay *CORSConfig) {
	c.Enabled = overlay.Enabled
	c.AllowCredentials = overlay.AllowCredentials

	for _, f := range []struct{ dst, src *[]string }{
		{&c.Origins, &overlay.Origins},
		{&c.AllowedMethods, &overlay.AllowedMethods},
		{&c.AllowedHeaders, &overlay.AllowedHeaders},
		{&c.ExposedHeaders, &overlay.ExposedHeaders},
	} {
		if *f.src != nil {
			*f.dst = *f.src
		}
	}
	if overlay.MaxAge > 0 {
		c.MaxAge = overlay.MaxAge
	}
}

func (c *CORSConfig) loadDefaults() {
	if len(c.AllowedMethods) == 0 {
		c.AllowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(c.AllowedHeaders) == 0 {
		c.AllowedHeaders = []string{"Content-Type", "Authorization", "X-Request-Id", "Last-Event-ID"}
	}
	if len(c.ExposedHeaders) == 0 {
		c.ExposedHeaders = []string{"X-Request-Id"}
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 3600
	}
}

func (c *CORSConfig) loadEnv(env *CORSEnv) error {
	for _, f := range []struct {
		name string
		dst  *bool
	}{
		{env.Enabled, &c.Enabled},
		{env.AllowCredentials, &c.AllowCredentials},
	} {
		if v := lookup(f.name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", f.name, err)
			}
			*f.dst = b
		}
	}

	for _, f := range []struct {
		name string
		dst  *[]string
	}{
		{env.Origins, &c.Origins},
		{env.AllowedMethods, &c.AllowedMethods},
		{env.AllowedHeaders, &c.AllowedHeaders},
		{env.ExposedHeaders, &c.ExposedHeaders},
	} {
		if list := envList(f.name); list != nil {
			*f.dst = list
		}
	}

	if v := lookup(env.MaxAge); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", env.MaxAge, err)
		}
		c.MaxAge = n
	}
	return nil
}

// validate rejects a wildcard origin combined with credentials, which
// browsers refuse.
func (c *CORSConfig) validate() error {
	if c.AllowCredentials && slices.Contains(c.Origins, "*") {
		return errors.New("allow_credentials cannot be combined with origin *")
	}
	if c.MaxAge < 0 {
		return fmt.Errorf("max_age must not be negative, got %d", c.MaxAge)
	}
	return nil
}

func lookup(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// envList reads a comma-separated variable, returning nil when it is unset
// or holds no items.
func envList(name string) []string {
	var out []string
	for item := range strings.SplitSeq(lookup(name), ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
