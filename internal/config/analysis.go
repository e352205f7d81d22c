package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/JaimeStill/attest/pkg/formatting"
)

const (
	EnvAnalysisConcurrency       = "ATTEST_ANALYSIS_CONCURRENCY"
	EnvAnalysisMaxAttempts       = "ATTEST_ANALYSIS_MAX_ATTEMPTS"
	EnvAnalysisRetryDelay        = "ATTEST_ANALYSIS_RETRY_DELAY"
	EnvAnalysisRetryJitter       = "ATTEST_ANALYSIS_RETRY_JITTER"
	EnvAnalysisEvaluationTimeout = "ATTEST_ANALYSIS_EVALUATION_TIMEOUT"
	EnvAnalysisJobTimeout        = "ATTEST_ANALYSIS_JOB_TIMEOUT"
	EnvAnalysisPersistTimeout    = "ATTEST_ANALYSIS_PERSIST_TIMEOUT"
	EnvAnalysisRetainWindow      = "ATTEST_ANALYSIS_RETAIN_WINDOW"
	EnvAnalysisSubscriberBuffer  = "ATTEST_ANALYSIS_SUBSCRIBER_BUFFER"
	EnvAnalysisMaxContextSize    = "ATTEST_ANALYSIS_MAX_CONTEXT_SIZE"
)

// MaxConcurrency bounds the in-flight evaluation calls of a single job.
const MaxConcurrency = 16

// AnalysisConfig tunes the evidence analysis engine.
type AnalysisConfig struct {
	Concurrency       int    `toml:"concurrency"`
	MaxAttempts       int    `toml:"max_attempts"`
	RetryDelay        string `toml:"retry_delay"`
	RetryJitter       *bool  `toml:"retry_jitter"`
	EvaluationTimeout string `toml:"evaluation_timeout"`
	JobTimeout        string `toml:"job_timeout"`
	PersistTimeout    string `toml:"persist_timeout"`
	RetainWindow      string `toml:"retain_window"`
	SubscriberBuffer  int    `toml:"subscriber_buffer"`
	MaxContextSize    string `toml:"max_context_size"`
}

// RetryDelayDuration returns RetryDelay as a time.Duration.
func (c *AnalysisConfig) RetryDelayDuration() time.Duration { return duration(c.RetryDelay) }

// EvaluationTimeoutDuration returns EvaluationTimeout as a time.Duration.
func (c *AnalysisConfig) EvaluationTimeoutDuration() time.Duration {
	return duration(c.EvaluationTimeout)
}

// JobTimeoutDuration returns JobTimeout as a time.Duration.
func (c *AnalysisConfig) JobTimeoutDuration() time.Duration { return duration(c.JobTimeout) }

// PersistTimeoutDuration returns PersistTimeout as a time.Duration.
func (c *AnalysisConfig) PersistTimeoutDuration() time.Duration { return duration(c.PersistTimeout) }

// RetainWindowDuration returns RetainWindow as a time.Duration.
func (c *AnalysisConfig) RetainWindowDuration() time.Duration { return duration(c.RetainWindow) }

// Jitter reports whether retry delays are jittered.
func (c *AnalysisConfig) Jitter() bool {
	return c.RetryJitter == nil || *c.RetryJitter
}

// MaxContextBytes returns MaxContextSize in bytes.
func (c *AnalysisConfig) MaxContextBytes() int64 {
	n, err := formatting.ParseBytes(c.MaxContextSize)
	if err != nil {
		return 2 * 1024 * 1024
	}
	return n
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *AnalysisConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *AnalysisConfig) Merge(overlay *AnalysisConfig) {
	if overlay.Concurrency != 0 {
		c.Concurrency = overlay.Concurrency
	}
	if overlay.MaxAttempts != 0 {
		c.MaxAttempts = overlay.MaxAttempts
	}
	if overlay.RetryDelay != "" {
		c.RetryDelay = overlay.RetryDelay
	}
	if overlay.RetryJitter != nil {
		c.RetryJitter = overlay.RetryJitter
	}
	if overlay.EvaluationTimeout != "" {
		c.EvaluationTimeout = overlay.EvaluationTimeout
	}
	if overlay.JobTimeout != "" {
		c.JobTimeout = overlay.JobTimeout
	}
	if overlay.PersistTimeout != "" {
		c.PersistTimeout = overlay.PersistTimeout
	}
	if overlay.RetainWindow != "" {
		c.RetainWindow = overlay.RetainWindow
	}
	if overlay.SubscriberBuffer != 0 {
		c.SubscriberBuffer = overlay.SubscriberBuffer
	}
	if overlay.MaxContextSize != "" {
		c.MaxContextSize = overlay.MaxContextSize
	}
}

func (c *AnalysisConfig) loadDefaults() {
	if c.Concurrency == 0 {
		c.Concurrency = 4
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 2
	}
	if c.RetryDelay == "" {
		c.RetryDelay = "2s"
	}
	if c.EvaluationTimeout == "" {
		c.EvaluationTimeout = "2m"
	}
	if c.JobTimeout == "" {
		c.JobTimeout = "30m"
	}
	if c.PersistTimeout == "" {
		c.PersistTimeout = "30s"
	}
	if c.RetainWindow == "" {
		c.RetainWindow = "5m"
	}
	if c.SubscriberBuffer == 0 {
		c.SubscriberBuffer = 32
	}
	if c.MaxContextSize == "" {
		c.MaxContextSize = "2MB"
	}
}

func (c *AnalysisConfig) loadEnv() {
	if v := os.Getenv(EnvAnalysisConcurrency); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Concurrency = n
		}
	}
	if v := os.Getenv(EnvAnalysisMaxAttempts); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxAttempts = n
		}
	}
	if v := os.Getenv(EnvAnalysisRetryDelay); v != "" {
		c.RetryDelay = v
	}
	if v := os.Getenv(EnvAnalysisRetryJitter); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.RetryJitter = &b
		}
	}
	if v := os.Getenv(EnvAnalysisEvaluationTimeout); v != "" {
		c.EvaluationTimeout = v
	}
	if v := os.Getenv(EnvAnalysisJobTimeout); v != "" {
		c.JobTimeout = v
	}
	if v := os.Getenv(EnvAnalysisPersistTimeout); v != "" {
		c.PersistTimeout = v
	}
	if v := os.Getenv(EnvAnalysisRetainWindow); v != "" {
		c.RetainWindow = v
	}
	if v := os.Getenv(EnvAnalysisSubscriberBuffer); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.SubscriberBuffer = n
		}
	}
	if v := os.Getenv(EnvAnalysisMaxContextSize); v != "" {
		c.MaxContextSize = v
	}
}

func (c *AnalysisConfig) validate() error {
	if c.Concurrency < 1 || c.Concurrency > MaxConcurrency {
		return fmt.Errorf("concurrency must be between 1 and %d", MaxConcurrency)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1")
	}
	if c.SubscriberBuffer < 1 {
		return fmt.Errorf("subscriber_buffer must be at least 1")
	}

	durations := map[string]string{
		"retry_delay":        c.RetryDelay,
		"evaluation_timeout": c.EvaluationTimeout,
		"job_timeout":        c.JobTimeout,
		"persist_timeout":    c.PersistTimeout,
		"retain_window":      c.RetainWindow,
	}
	for name, value := range durations {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}

	if _, err := formatting.ParseBytes(c.MaxContextSize); err != nil {
		return fmt.Errorf("invalid max_context_size: %w", err)
	}
	return nil
}

func duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
