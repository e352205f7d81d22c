package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Supported evaluation backend providers.
const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
	ProviderOllama = "ollama"
)

const (
	EnvAgentProvider    = "ATTEST_AGENT_PROVIDER"
	EnvAgentBaseURL     = "ATTEST_AGENT_BASE_URL"
	EnvAgentAPIKey      = "ATTEST_AGENT_API_KEY"
	EnvAgentModel       = "ATTEST_AGENT_MODEL"
	EnvAgentDeployment  = "ATTEST_AGENT_DEPLOYMENT"
	EnvAgentAPIVersion  = "ATTEST_AGENT_API_VERSION"
	EnvAgentMaxTokens   = "ATTEST_AGENT_MAX_TOKENS"
	EnvAgentTemperature = "ATTEST_AGENT_TEMPERATURE"
	EnvAgentTimeout     = "ATTEST_AGENT_TIMEOUT"
)

// AgentConfig describes the OpenAI-compatible evaluation backend.
type AgentConfig struct {
	Provider    string   `toml:"provider"`
	BaseURL     string   `toml:"base_url"`
	APIKey      string   `toml:"api_key"`
	Model       string   `toml:"model"`
	Deployment  string   `toml:"deployment"`
	APIVersion  string   `toml:"api_version"`
	MaxTokens   int      `toml:"max_tokens"`
	Temperature *float32 `toml:"temperature"`
	Timeout     string   `toml:"timeout"`
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *AgentConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *AgentConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *AgentConfig) Merge(overlay *AgentConfig) {
	if overlay.Provider != "" {
		c.Provider = overlay.Provider
	}
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.APIKey != "" {
		c.APIKey = overlay.APIKey
	}
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.Deployment != "" {
		c.Deployment = overlay.Deployment
	}
	if overlay.APIVersion != "" {
		c.APIVersion = overlay.APIVersion
	}
	if overlay.MaxTokens != 0 {
		c.MaxTokens = overlay.MaxTokens
	}
	if overlay.Temperature != nil {
		c.Temperature = overlay.Temperature
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}

func (c *AgentConfig) loadDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderOllama
	}
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.BaseURL == "" && c.Provider == ProviderOllama {
		c.BaseURL = "http://localhost:11434/v1"
	}
	if c.APIVersion == "" && c.Provider == ProviderAzure {
		c.APIVersion = "2024-10-21"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout == "" {
		c.Timeout = "90s"
	}
}

func (c *AgentConfig) loadEnv() {
	if v := os.Getenv(EnvAgentProvider); v != "" {
		c.Provider = v
	}
	if v := os.Getenv(EnvAgentBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvAgentAPIKey); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv(EnvAgentModel); v != "" {
		c.Model = v
	}
	if v := os.Getenv(EnvAgentDeployment); v != "" {
		c.Deployment = v
	}
	if v := os.Getenv(EnvAgentAPIVersion); v != "" {
		c.APIVersion = v
	}
	if v := os.Getenv(EnvAgentMaxTokens); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxTokens = n
		}
	}
	if v := os.Getenv(EnvAgentTemperature); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			t := float32(f)
			c.Temperature = &t
		}
	}
	if v := os.Getenv(EnvAgentTimeout); v != "" {
		c.Timeout = v
	}
}

func (c *AgentConfig) validate() error {
	switch c.Provider {
	case ProviderOpenAI:
		if c.APIKey == "" {
			return fmt.Errorf("api_key required for openai provider")
		}
	case ProviderAzure:
		if c.BaseURL == "" {
			return fmt.Errorf("base_url required for azure provider")
		}
		if c.APIKey == "" {
			return fmt.Errorf("api_key required for azure provider")
		}
	case ProviderOllama:
		if c.BaseURL == "" {
			return fmt.Errorf("base_url required for ollama provider")
		}
	default:
		return fmt.Errorf("unsupported provider %q", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model required")
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be positive")
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}
