// Package llm provides completion clients for the classification and
// drafting stages: Anthropic as the primary provider, OpenAI as fallback.
package llm

import (
	"context"
	"errors"
	"time"

	"responder/internal/config"

	"github.com/rs/zerolog"
)

// ErrNotConfigured is returned when no provider has credentials
var ErrNotConfigured = errors.New("no LLM provider configured: set ANTHROPIC_API_KEY or OPENAI_API_KEY")

// Message is one chat turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a provider-neutral completion request
type Request struct {
	System    string
	Messages  []Message
	MaxTokens int
}

// Response is a provider-neutral completion result
type Response struct {
	Content   string
	Model     string
	Provider  string
	TokensIn  int
	TokensOut int
	LatencyMs int64
}

// Client is the interface every provider implements
type Client interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
	Name() string
}

// UserPrompt builds a single-turn request
func UserPrompt(system, user string, maxTokens int) *Request {
	return &Request{
		System:    system,
		Messages:  []Message{{Role: "user", Content: user}},
		MaxTokens: maxTokens,
	}
}

// New builds the configured provider chain: Anthropic primary, OpenAI
// fallback, both behind a shared rate limit.
func New(cfg *config.Config, logger zerolog.Logger) (Client, error) {
	var primary, fallback Client

	if cfg.HasAnthropic() {
		c, err := NewAnthropicClient(cfg.AnthropicKey, cfg.AnthropicModel, "")
		if err != nil {
			return nil, err
		}
		primary = c
	}

	if cfg.HasOpenAIFallback() {
		c, err := NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIModel, "")
		if err != nil {
			return nil, err
		}
		if primary == nil {
			primary = c
		} else {
			fallback = c
		}
	}

	if primary == nil {
		return nil, ErrNotConfigured
	}

	var client Client = primary
	if fallback != nil {
		client = NewFallbackClient(primary, fallback, logger)
	}

	if cfg.LLMRequestsPerMinute > 0 {
		client = NewRateLimitedClient(client, cfg.LLMRequestsPerMinute, time.Minute)
	}

	logger.Info().
		Str("primary", primary.Name()).
		Bool("fallback", fallback != nil).
		Int("requests_per_minute", cfg.LLMRequestsPerMinute).
		Msg("LLM client configured")

	return client, nil
}
