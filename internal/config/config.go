// Package config loads the service configuration from TOML files and
// ATTEST_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/attest/pkg/database"
	"github.com/JaimeStill/attest/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvAttestEnv             = "ATTEST_ENV"
	EnvAttestShutdownTimeout = "ATTEST_SHUTDOWN_TIMEOUT"
	EnvAttestVersion         = "ATTEST_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "ATTEST_DB_HOST",
	Port:            "ATTEST_DB_PORT",
	Name:            "ATTEST_DB_NAME",
	User:            "ATTEST_DB_USER",
	Password:        "ATTEST_DB_PASSWORD",
	SSLMode:         "ATTEST_DB_SSL_MODE",
	MaxOpenConns:    "ATTEST_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "ATTEST_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "ATTEST_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "ATTEST_DB_CONN_TIMEOUT",
	ApplicationName: "ATTEST_DB_APPLICATION_NAME",
}

var storageEnv = &storage.Env{
	Provider:         "ATTEST_STORAGE_PROVIDER",
	ContainerName:    "ATTEST_STORAGE_CONTAINER_NAME",
	ConnectionString: "ATTEST_STORAGE_CONNECTION_STRING",
	ServiceURL:       "ATTEST_STORAGE_SERVICE_URL",
	Endpoint:         "ATTEST_STORAGE_ENDPOINT",
	Region:           "ATTEST_STORAGE_REGION",
	AccessKey:        "ATTEST_STORAGE_ACCESS_KEY",
	SecretKey:        "ATTEST_STORAGE_SECRET_KEY",
	UseSSL:           "ATTEST_STORAGE_USE_SSL",
}

// Config is the root configuration for the attest service.
type Config struct {
	Server          ServerConfig    `toml:"server"`
	Database        database.Config `toml:"database"`
	Storage         storage.Config  `toml:"storage"`
	API             APIConfig       `toml:"api"`
	Agent           AgentConfig     `toml:"agent"`
	Analysis        AnalysisConfig  `toml:"analysis"`
	Logging         LoggingConfig   `toml:"logging"`
	ShutdownTimeout string          `toml:"shutdown_timeout"`
	Version         string          `toml:"version"`
}

// Env returns the ATTEST_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvAttestEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	return LoadFrom(BaseConfigFile)
}

// LoadFrom behaves like Load with an explicit base config path. The overlay
// is resolved next to the base file.
func LoadFrom(base string) (*Config, error) {
	cfg, err := read(base)
	if err != nil {
		return nil, err
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// LoadDatabase resolves only the database section, for tools that must not
// require agent or storage credentials.
func LoadDatabase(base string) (*database.Config, error) {
	cfg, err := read(base)
	if err != nil {
		return nil, err
	}

	if err := cfg.Database.Finalize(databaseEnv); err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	return &cfg.Database, nil
}

func read(base string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(base); err == nil {
		loaded, err := load(base)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(base); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Agent.Merge(&overlay.Agent)
	c.Analysis.Merge(&overlay.Analysis)
	c.Logging.Merge(&overlay.Logging)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Agent.Finalize(); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if err := c.Analysis.Finalize(); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}
	if err := c.Logging.Finalize(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvAttestShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvAttestVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath(base string) string {
	if env := os.Getenv(EnvAttestEnv); env != "" {
		path := filepath.Join(filepath.Dir(base), fmt.Sprintf(OverlayConfigPattern, env))
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
