package openapi

import (
	"fmt"
	"os"
	"strings"
)

// Config holds the document metadata of the generated spec. Servers lists
// additional base URLs, such as a gateway, ahead of the service's own.
type Config struct {
	Title       string   `toml:"title"`
	Description string   `toml:"description"`
	Servers     []string `toml:"servers"`
}

// ConfigEnv names the environment variables that override Config.
// Servers is read as a comma-separated list.
type ConfigEnv struct {
	Title       string
	Description string
	Servers     string
}

// Finalize applies defaults, then environment overrides, then validation.
func (c *Config) Finalize(env *ConfigEnv) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	for _, s := range c.Servers {
		if !strings.HasPrefix(s, "/") && !strings.Contains(s, "://") {
			return fmt.Errorf("server %q must be absolute or start with /", s)
		}
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Title != "" {
		c.Title = overlay.Title
	}
	if overlay.Description != "" {
		c.Description = overlay.Description
	}
	if len(overlay.Servers) > 0 {
		c.Servers = overlay.Servers
	}
}

// Spec starts a document for this service. basePath is listed as the last
// server so relative requests resolve against the mounted module.
func (c *Config) Spec(version, basePath string) *Spec {
	spec := NewSpec(c.Title, version)
	spec.SetDescription(c.Description)
	for _, s := range c.Servers {
		spec.AddServer(s)
	}
	if basePath != "" {
		spec.AddServer(basePath)
	}
	return spec
}

func (c *Config) loadDefaults() {
	if c.Title == "" {
		c.Title = "Attest API"
	}
	if c.Description == "" {
		c.Description = "Compliance evidence analysis: evaluates documents against framework controls and streams progress."
	}
}

func (c *Config) loadEnv(env *ConfigEnv) {
	if v := lookup(env.Title); v != "" {
		c.Title = v
	}
	if v := lookup(env.Description); v != "" {
		c.Description = v
	}
	if v := lookup(env.Servers); v != "" {
		c.Servers = nil
		for s := range strings.SplitSeq(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				c.Servers = append(c.Servers, s)
			}
		}
	}
}

func lookup(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
