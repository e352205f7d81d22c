package storage

import (
	"fmt"
	"os"
	"strconv"
)

// Supported storage providers.
const (
	ProviderAzure = "azure"
	ProviderMinio = "minio"
)

// Config holds blob storage connection parameters for every provider.
// Only the fields of the selected Provider are consulted.
type Config struct {
	Provider      string `toml:"provider"`
	ContainerName string `toml:"container_name"`

	// Azure: either ConnectionString, or ServiceURL authenticated with
	// the default Azure credential chain.
	ConnectionString string `toml:"connection_string"`
	ServiceURL       string `toml:"service_url"`

	// MinIO / S3-compatible.
	Endpoint  string `toml:"endpoint"`
	Region    string `toml:"region"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Provider         string
	ContainerName    string
	ConnectionString string
	ServiceURL       string
	Endpoint         string
	Region           string
	AccessKey        string
	SecretKey        string
	UseSSL           string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Provider != "" {
		c.Provider = overlay.Provider
	}
	if overlay.ContainerName != "" {
		c.ContainerName = overlay.ContainerName
	}
	if overlay.ConnectionString != "" {
		c.ConnectionString = overlay.ConnectionString
	}
	if overlay.ServiceURL != "" {
		c.ServiceURL = overlay.ServiceURL
	}
	if overlay.Endpoint != "" {
		c.Endpoint = overlay.Endpoint
	}
	if overlay.Region != "" {
		c.Region = overlay.Region
	}
	if overlay.AccessKey != "" {
		c.AccessKey = overlay.AccessKey
	}
	if overlay.SecretKey != "" {
		c.SecretKey = overlay.SecretKey
	}
	if overlay.UseSSL {
		c.UseSSL = true
	}
}

func (c *Config) loadDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderAzure
	}
	if c.ContainerName == "" {
		c.ContainerName = "documents"
	}
}

func (c *Config) loadEnv(env *Env) {
	setString := func(dst *string, name string) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	setString(&c.Provider, env.Provider)
	setString(&c.ContainerName, env.ContainerName)
	setString(&c.ConnectionString, env.ConnectionString)
	setString(&c.ServiceURL, env.ServiceURL)
	setString(&c.Endpoint, env.Endpoint)
	setString(&c.Region, env.Region)
	setString(&c.AccessKey, env.AccessKey)
	setString(&c.SecretKey, env.SecretKey)

	if env.UseSSL != "" {
		if v := os.Getenv(env.UseSSL); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.UseSSL = b
			}
		}
	}
}

func (c *Config) validate() error {
	if c.ContainerName == "" {
		return fmt.Errorf("container_name required")
	}

	switch c.Provider {
	case ProviderAzure:
		if c.ConnectionString == "" && c.ServiceURL == "" {
			return fmt.Errorf("connection_string or service_url required for azure storage")
		}
	case ProviderMinio:
		if c.Endpoint == "" {
			return fmt.Errorf("endpoint required for minio storage")
		}
		if c.AccessKey == "" || c.SecretKey == "" {
			return fmt.Errorf("access_key and secret_key required for minio storage")
		}
	default:
		return fmt.Errorf("unsupported storage provider %q", c.Provider)
	}
	return nil
}
