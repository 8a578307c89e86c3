package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/yannistannier/ayd/internal/observability"
)

// OpenAIClient implements CompletionClient against the OpenAI API or any
// API-compatible deployment reachable through a custom base URL.
//
// The client handles:
//   - Batched prompt completion through the completions endpoint
//   - Single-turn chat completion for interactive queries
//   - Retry with linear backoff for transient failures
//   - Request metrics when a Metrics collector is attached
//
// OpenAIClient is safe for concurrent use.
type OpenAIClient struct {
	client *openai.Client

	// maxRetries bounds retry attempts for retryable errors (429, 5xx,
	// timeouts). Delay grows linearly: retryDelay * attempt.
	maxRetries int
	retryDelay time.Duration

	logger  *observability.Logger
	metrics *observability.Metrics
}

// Config configures the OpenAI client.
type Config struct {
	// APIKey authenticates against the API.
	APIKey string

	// BaseURL overrides the API endpoint for self-hosted deployments.
	// Empty means the public OpenAI API.
	BaseURL string

	// Timeout is the per-request HTTP timeout. Zero means the SDK default.
	Timeout time.Duration
}

// Option customizes an OpenAIClient.
type Option func(*OpenAIClient)

// WithLogger attaches a structured logger.
func WithLogger(logger *observability.Logger) Option {
	return func(c *OpenAIClient) { c.logger = logger }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(c *OpenAIClient) { c.metrics = metrics }
}

// WithMaxRetries overrides the retry attempt count.
func WithMaxRetries(n int) Option {
	return func(c *OpenAIClient) { c.maxRetries = n }
}

// NewOpenAIClient creates a completion client for the configured endpoint.
func NewOpenAIClient(cfg Config, opts ...Option) *OpenAIClient {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &OpenAIClient{
		client:     openai.NewClientWithConfig(apiCfg),
		maxRetries: 3,
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends all prompts in a single batched completion request.
// The returned slice has one entry per prompt, in prompt order.
func (c *OpenAIClient) Complete(ctx context.Context, model string, prompts []string, params Params) ([]string, error) {
	if len(prompts) == 0 {
		return nil, nil
	}

	req := openai.CompletionRequest{
		Model:       model,
		Prompt:      prompts,
		Temperature: params.Temperature,
		TopP:        params.TopP,
	}
	if params.MaxTokens > 0 {
		req.MaxTokens = params.MaxTokens
	}

	start := time.Now()
	var resp openai.CompletionResponse
	err := c.withRetry(ctx, func() error {
		var callErr error
		resp, callErr = c.client.CreateCompletion(ctx, req)
		return callErr
	})
	c.recordRequest(model, start, err)
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}

	if len(resp.Choices) != len(prompts) {
		return nil, fmt.Errorf("completion returned %d choices for %d prompts", len(resp.Choices), len(prompts))
	}

	// Choices can arrive out of order; Index ties each back to its prompt.
	choices := make([]openai.CompletionChoice, len(resp.Choices))
	copy(choices, resp.Choices)
	sort.Slice(choices, func(i, j int) bool { return choices[i].Index < choices[j].Index })

	outputs := make([]string, len(prompts))
	for i, choice := range choices {
		outputs[i] = choice.Text
	}
	return outputs, nil
}

// ChatComplete sends one system+user exchange and returns the assistant text.
func (c *OpenAIClient) ChatComplete(ctx context.Context, model, system, user string, params Params) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: params.Temperature,
		TopP:        params.TopP,
	}
	if params.MaxTokens > 0 {
		req.MaxTokens = params.MaxTokens
	}

	start := time.Now()
	var resp openai.ChatCompletionResponse
	err := c.withRetry(ctx, func() error {
		var callErr error
		resp, callErr = c.client.CreateChatCompletion(ctx, req)
		return callErr
	})
	c.recordRequest(model, start, err)
	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) withRetry(ctx context.Context, call func() error) error {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}

		lastErr = call()
		if lastErr == nil {
			return nil
		}
		if !isRetryableError(lastErr) {
			return lastErr
		}
		if c.logger != nil {
			c.logger.Warn(ctx, "retrying completion request", "attempt", attempt+1, "error", lastErr)
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *OpenAIClient) recordRequest(model string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordCompletionRequest(model, status, time.Since(start).Seconds())
}

// isRetryableError classifies transient failures: rate limits, server
// errors, and timeouts.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}

	msg := err.Error()
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded")
}
