// Package openaifn classifies alignment batches through OpenAI-compatible
// function calling. The model is forced to call return_segment_mapping, and
// the call's arguments are returned as the JSON payload.
package openaifn

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"slidenotes/internal/services"
)

// FunctionName is the tool the model must call with its mappings.
const FunctionName = "return_segment_mapping"

const (
	defaultRetryAttempts  = 2
	defaultRetryBaseDelay = time.Second
	maxRetryDelay         = 10 * time.Second
)

// Config captures the endpoint settings. RetryAttempts is the total number of
// attempts per call (defaults to 2, one retry).
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
	RetryAttempts  int
	RetryBaseDelay time.Duration
}

// Client issues forced function-call completions.
type Client struct {
	api       *openai.Client
	model     string
	key       string
	attempts  int
	baseDelay time.Duration
}

// Option customizes the underlying go-openai client configuration.
type Option func(*openai.ClientConfig)

// WithHTTPClient overrides the HTTP client used by go-openai.
func WithHTTPClient(client *http.Client) Option {
	return func(cfg *openai.ClientConfig) {
		if client != nil {
			cfg.HTTPClient = client
		}
	}
}

// NewClient constructs a function-calling client.
func NewClient(cfg Config, opts ...Option) *Client {
	key := strings.TrimSpace(cfg.APIKey)
	clientCfg := openai.DefaultConfig(key)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = strings.TrimRight(base, "/")
	}
	timeout := 60 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}
	for _, opt := range opts {
		opt(&clientCfg)
	}
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}
	baseDelay := cfg.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = defaultRetryBaseDelay
	}
	return &Client{
		api:       openai.NewClientWithConfig(clientCfg),
		model:     strings.TrimSpace(cfg.Model),
		key:       key,
		attempts:  attempts,
		baseDelay: baseDelay,
	}
}

// MappingTool describes the return_segment_mapping function schema.
func MappingTool() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        FunctionName,
			Description: "Return the slide each transcript segment belongs to",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"mappings": {
						Type: jsonschema.Array,
						Items: &jsonschema.Definition{
							Type: jsonschema.Object,
							Properties: map[string]jsonschema.Definition{
								"segment_id": {Type: jsonschema.Integer, Description: "Segment ID from the batch"},
								"slide_id":   {Type: jsonschema.Integer, Description: "Slide number, or -1 when no listed slide matches"},
							},
							Required: []string{"segment_id", "slide_id"},
						},
					},
				},
				Required: []string{"mappings"},
			},
		},
	}
}

// CompleteJSON sends the prompts and returns the arguments of the forced
// function call, which is a JSON object of the form {"mappings":[...]}.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.key == "" {
		return "", services.Wrap(services.ErrConfiguration, "classify", "openai function call", "api key required (set llm.api_key or OPENAI_API_KEY)", nil)
	}
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Tools: []openai.Tool{MappingTool()},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: FunctionName},
		},
	}
	var resp openai.ChatCompletionResponse
	err := c.withRetry(ctx, func() error {
		var callErr error
		resp, callErr = c.api.CreateChatCompletion(ctx, req)
		return callErr
	})
	if err != nil {
		return "", classifyFailure(err)
	}
	if len(resp.Choices) == 0 {
		return "", services.Wrap(services.ErrExternalTool, "classify", "openai function call", "empty choices", nil)
	}
	msg := resp.Choices[0].Message
	for _, call := range msg.ToolCalls {
		if call.Function.Name == FunctionName && strings.TrimSpace(call.Function.Arguments) != "" {
			return call.Function.Arguments, nil
		}
	}
	if content := strings.TrimSpace(msg.Content); content != "" {
		return content, nil
	}
	return "", services.Wrap(services.ErrExternalTool, "classify", "openai function call",
		"model did not call "+FunctionName+" (finish_reason="+string(resp.Choices[0].FinishReason)+")", nil)
}

// HealthCheck lists models to verify the key and endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.key == "" {
		return services.Wrap(services.ErrConfiguration, "health", "openai health", "api key required", nil)
	}
	if _, err := c.api.ListModels(ctx); err != nil {
		return classifyFailure(err)
	}
	return nil
}

// Model reports the configured model name.
func (c *Client) Model() string {
	return c.model
}

// withRetry runs call up to c.attempts times, backing off exponentially
// between retryable failures.
func (c *Client) withRetry(ctx context.Context, call func() error) error {
	delay := c.baseDelay
	var err error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if err = call(); err == nil {
			return nil
		}
		if attempt == c.attempts || !retryable(ctx, err) {
			return err
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if delay *= 2; delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
	return err
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func retryableStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func classifyFailure(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "classify", "openai function call", "request timed out", err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusRequestTimeout {
		return services.Wrap(services.ErrTimeout, "classify", "openai function call", "request timed out", err)
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return services.Wrap(services.ErrTimeout, "classify", "openai function call", "request timed out", err)
	}
	return services.Wrap(services.ErrExternalTool, "classify", "openai function call", "request failed", err)
}
