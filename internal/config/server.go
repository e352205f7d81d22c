package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

const (
	EnvServerHost            = "ATTEST_SERVER_HOST"
	EnvServerPort            = "ATTEST_SERVER_PORT"
	EnvServerReadTimeout     = "ATTEST_SERVER_READ_TIMEOUT"
	EnvServerWriteTimeout    = "ATTEST_SERVER_WRITE_TIMEOUT"
	EnvServerIdleTimeout     = "ATTEST_SERVER_IDLE_TIMEOUT"
	EnvServerShutdownTimeout = "ATTEST_SERVER_SHUTDOWN_TIMEOUT"
)

// ServerConfig holds HTTP listener parameters. Progress streams clear the
// write deadline themselves, so WriteTimeout bounds ordinary responses only.
type ServerConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	ReadTimeout     string `toml:"read_timeout"`
	WriteTimeout    string `toml:"write_timeout"`
	IdleTimeout     string `toml:"idle_timeout"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *ServerConfig) ReadTimeoutDuration() time.Duration     { return duration(c.ReadTimeout) }
func (c *ServerConfig) WriteTimeoutDuration() time.Duration    { return duration(c.WriteTimeout) }
func (c *ServerConfig) IdleTimeoutDuration() time.Duration     { return duration(c.IdleTimeout) }
func (c *ServerConfig) ShutdownTimeoutDuration() time.Duration { return duration(c.ShutdownTimeout) }

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ServerConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ServerConfig) Merge(overlay *ServerConfig) {
	if overlay.Host != "" {
		c.Host = overlay.Host
	}
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	for _, d := range c.durations() {
		if v := *d.field(overlay); v != "" {
			*d.field(c) = v
		}
	}
}

type durationField struct {
	name  string
	env   string
	def   string
	field func(*ServerConfig) *string
}

func (c *ServerConfig) durations() []durationField {
	return []durationField{
		{"read_timeout", EnvServerReadTimeout, "1m", func(s *ServerConfig) *string { return &s.ReadTimeout }},
		{"write_timeout", EnvServerWriteTimeout, "5m", func(s *ServerConfig) *string { return &s.WriteTimeout }},
		{"idle_timeout", EnvServerIdleTimeout, "2m", func(s *ServerConfig) *string { return &s.IdleTimeout }},
		{"shutdown_timeout", EnvServerShutdownTimeout, "30s", func(s *ServerConfig) *string { return &s.ShutdownTimeout }},
	}
}

func (c *ServerConfig) loadDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	for _, d := range c.durations() {
		if p := d.field(c); *p == "" {
			*p = d.def
		}
	}
}

func (c *ServerConfig) loadEnv() {
	if v := os.Getenv(EnvServerHost); v != "" {
		c.Host = v
	}
	if v := os.Getenv(EnvServerPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	for _, d := range c.durations() {
		if v := os.Getenv(d.env); v != "" {
			*d.field(c) = v
		}
	}
}

func (c *ServerConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	for _, d := range c.durations() {
		v, err := time.ParseDuration(*d.field(c))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
		if v <= 0 {
			return fmt.Errorf("%s must be positive", d.name)
		}
	}
	return nil
}
