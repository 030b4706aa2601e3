package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/shopkeeper-ai/shopkeeper/pkg/config"
	"github.com/shopkeeper-ai/shopkeeper/pkg/models"
)

var (
	ErrNoProviders     = errors.New("llm: no providers configured")
	ErrEmptyCompletion = errors.New("llm: empty completion")
)

// Gateway produces a free-text answer for a conversation. The deadline is
// carried by ctx.
type Gateway interface {
	Complete(ctx context.Context, systemPrompt string, messages []models.ChatMessage) (string, error)
}

// Provider is one upstream model endpoint.
type Provider interface {
	Name() string
	Complete(ctx context.Context, systemPrompt string, messages []models.ChatMessage) (string, error)
}

// ProviderError is a failed upstream call with its HTTP status, if any.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Client tries providers in order until one answers.
type Client struct {
	providers []Provider
	logger    zerolog.Logger
}

// NewClient creates a Client over an ordered provider chain.
func NewClient(providers []Provider, logger zerolog.Logger) *Client {
	return &Client{providers: providers, logger: logger}
}

// FromConfig builds a Client with one provider per configured entry.
func FromConfig(cfg config.LLMConfig, logger zerolog.Logger) (*Client, error) {
	providers := make([]Provider, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		switch p.Type {
		case "", "openai":
			providers = append(providers, NewOpenAIProvider(p))
		case "anthropic":
			providers = append(providers, NewAnthropicProvider(p))
		default:
			return nil, fmt.Errorf("provider %s: unknown type %q", p.Name, p.Type)
		}
	}
	return NewClient(providers, logger), nil
}

// Complete returns the first non-empty completion in provider order. A
// non-retryable failure stops the chain; otherwise the last error is returned.
func (c *Client) Complete(ctx context.Context, systemPrompt string, messages []models.ChatMessage) (string, error) {
	if len(c.providers) == 0 {
		return "", ErrNoProviders
	}

	var lastErr error
	for i, p := range c.providers {
		text, err := p.Complete(ctx, systemPrompt, messages)
		if err == nil && strings.TrimSpace(text) == "" {
			err = &ProviderError{Provider: p.Name(), Err: ErrEmptyCompletion}
		}
		if err == nil {
			return text, nil
		}

		lastErr = err
		if !isRetryable(ctx, err) {
			break
		}
		if i < len(c.providers)-1 {
			c.logger.Warn().Err(err).Str("provider", p.Name()).Msg("llm provider failed, trying next")
		}
	}
	return "", lastErr
}

// isRetryable reports whether the next provider is worth trying.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.StatusCode == 0 {
		return true
	}
	return pe.StatusCode == http.StatusTooManyRequests || pe.StatusCode >= 500
}
