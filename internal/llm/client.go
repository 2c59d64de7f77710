package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/efebarandurmaz/courtside/internal/observability"
)

// ErrorAnswer replaces the model text when a Chat call fails.
const ErrorAnswer = "Une erreur est survenue lors de l'appel au modèle."

// ErrNoProvider is returned when the client was built without a provider
// (provider "none").
var ErrNoProvider = errors.New("no LLM provider configured")

// Client is the system+user → text collaborator used by the pipelines.
type Client struct {
	provider Provider
	model    string
	logger   *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithModel records the model name on spans and logs.
func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient wraps a provider. A nil provider yields a client whose calls fail
// with ErrNoProvider.
func NewClient(p Provider, opts ...ClientOption) *Client {
	c := &Client{provider: p, logger: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Provider returns the wrapped provider, possibly nil.
func (c *Client) Provider() Provider { return c.provider }

// Complete sends one system+user pair and returns the model text verbatim.
func (c *Client) Complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	if c.provider == nil {
		return "", ErrNoProvider
	}

	ctx, span := observability.StartLLMSpan(ctx, c.provider.Name(), c.model)
	defer span.End()

	start := time.Now()
	resp, err := c.provider.Complete(ctx, NewPrompt(system, user), WithTemperature(temperature))
	elapsed := time.Since(start)

	if err != nil {
		observability.Metrics().RecordLLMRequest(elapsed, 0, err)
		observability.RecordError(span, err)
		return "", fmt.Errorf("%s completion: %w", c.provider.Name(), err)
	}

	observability.Metrics().RecordLLMRequest(elapsed, resp.InputTokens+resp.OutputTokens, nil)
	observability.RecordLLMMetrics(span, resp.InputTokens, resp.OutputTokens, elapsed)
	return resp.Content, nil
}

// Chat is Complete for callers that cannot handle errors: a failure is logged
// and ErrorAnswer is returned in place of the model text.
func (c *Client) Chat(ctx context.Context, system, user string, temperature float64) string {
	text, err := c.Complete(ctx, system, user, temperature)
	if err != nil {
		c.logger.Error("llm call failed",
			"model", c.model,
			"system_prefix", truncate(system, 80),
			"error", err,
		)
		return ErrorAnswer
	}
	return text
}

// Embed forwards to the provider.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.provider == nil {
		return nil, ErrNoProvider
	}
	return c.provider.Embed(ctx, texts)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
