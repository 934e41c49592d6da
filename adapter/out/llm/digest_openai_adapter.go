// Package llm adapts the OpenAI chat completion API to the TextModel
// port.
package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jkoufopoulos/shopq-prototype-sub001/core/port/out"
	"github.com/jkoufopoulos/shopq-prototype-sub001/pkg/apperr"
	"github.com/jkoufopoulos/shopq-prototype-sub001/pkg/resilience"
)

const DefaultModel = "gpt-4o-mini"

type ClientConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
}

// Client implements out.TextModel over the OpenAI chat API, with a
// per-call timeout, bounded retry on retryable failures, and a circuit
// breaker around the whole collaborator.
type Client struct {
	client      *openai.Client
	breaker     *resilience.Breaker
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	maxRetries  int
}

func NewClient(cfg ClientConfig) *Client {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.7
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		client:      openai.NewClient(cfg.APIKey),
		breaker:     resilience.NewBreaker(resilience.DefaultBreakerConfig("openai")),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
		timeout:     timeout,
		maxRetries:  cfg.MaxRetries,
	}
}

var _ out.TextModel = (*Client)(nil)

func (c *Client) Generate(ctx context.Context, prompt string, opts out.GenerateOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := c.buildRequest(prompt, opts)

	var content string
	call := func() error {
		return c.breaker.Execute(func() error {
			resp, err := c.client.CreateChatCompletion(ctx, req)
			if err != nil {
				return err
			}
			if len(resp.Choices) == 0 {
				return apperr.ExternalCall("openai", errors.New("empty completion"))
			}
			content = resp.Choices[0].Message.Content
			return nil
		})
	}

	if err := resilience.Retry(ctx, c.maxRetries+1, time.Second, isRetryable, call); err != nil {
		return "", apperr.ExternalCall("openai", err)
	}
	return content, nil
}

// buildRequest maps GenerateOptions onto the chat request. A nil
// temperature falls back to the configured default; an explicit zero is
// passed through for deterministic output.
func (c *Client) buildRequest(prompt string, opts out.GenerateOptions) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}
	if opts.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return req
}

// isRetryable reports whether a completion failure is worth retrying:
// rate limits, server errors, and deadline expiry.
func isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	return false
}
