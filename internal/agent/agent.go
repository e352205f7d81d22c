// Package agent is the evaluation backend: an OpenAI-compatible chat
// completion client that answers one control evaluation per call.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/JaimeStill/attest/internal/config"
	"github.com/JaimeStill/attest/internal/workflow"
	"github.com/JaimeStill/attest/pkg/formatting"
)

var (
	ErrEmptyResponse     = errors.New("backend returned no content")
	ErrMalformedResponse = errors.New("backend returned malformed output")
	ErrRateLimited       = errors.New("backend rate limited the request")
	ErrBackend           = errors.New("backend request failed")
)

// Client calls an OpenAI, Azure OpenAI or Ollama chat completion endpoint.
type Client struct {
	api         *openai.Client
	model       string
	maxTokens   int
	temperature *float32
	logger      *slog.Logger
}

// New builds a Client for the configured provider.
func New(cfg *config.AgentConfig, logger *slog.Logger) (*Client, error) {
	var oc openai.ClientConfig

	switch cfg.Provider {
	case config.ProviderOpenAI:
		oc = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
	case config.ProviderAzure:
		oc = openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
		oc.APIVersion = cfg.APIVersion
		if cfg.Deployment != "" {
			deployment := cfg.Deployment
			oc.AzureModelMapperFunc = func(string) string { return deployment }
		}
	case config.ProviderOllama:
		key := cfg.APIKey
		if key == "" {
			key = "ollama"
		}
		oc = openai.DefaultConfig(key)
		oc.BaseURL = cfg.BaseURL
	default:
		return nil, fmt.Errorf("unsupported agent provider %q", cfg.Provider)
	}

	oc.HTTPClient = &http.Client{Timeout: cfg.TimeoutDuration()}

	return &Client{
		api:         openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logger.With("system", "agent", "provider", cfg.Provider, "model", cfg.Model),
	}, nil
}

// Evaluate sends one control evaluation and decodes the answer. The answer
// may be raw JSON, fenced JSON or a JSON object embedded in prose.
func (c *Client) Evaluate(ctx context.Context, req workflow.Request) (*workflow.Evaluation, error) {
	content, err := c.Complete(ctx, req.Instructions, req.Prompt())
	if err != nil {
		return nil, err
	}

	eval, err := formatting.Parse[workflow.Evaluation](content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return &eval, nil
}

// Complete runs a JSON-mode chat completion and returns the first choice.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}

	if reasoningModel(c.model) {
		req.MaxCompletionTokens = c.maxTokens
	} else {
		req.MaxTokens = c.maxTokens
		if c.temperature != nil {
			req.Temperature = *c.temperature
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", mapError(err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}

	c.logger.DebugContext(ctx, "completion received",
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"finish_reason", resp.Choices[0].FinishReason,
	)
	return content, nil
}

// reasoningModel reports whether model belongs to a family that takes
// max_completion_tokens instead of max_tokens.
func reasoningModel(model string) bool {
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Message)
		}
		return fmt.Errorf("%w: status %d: %s", ErrBackend, apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
		return fmt.Errorf("%w: status %d: %w", ErrBackend, reqErr.HTTPStatusCode, err)
	}

	return fmt.Errorf("%w: %w", ErrBackend, err)
}
