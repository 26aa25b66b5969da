package llm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// FallbackClient tries the primary provider and retries once on the fallback
type FallbackClient struct {
	primary  Client
	fallback Client
	logger   zerolog.Logger
}

// NewFallbackClient wraps two providers
func NewFallbackClient(primary, fallback Client, logger zerolog.Logger) *FallbackClient {
	return &FallbackClient{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With().Str("component", "llm").Logger(),
	}
}

// Name returns the primary provider name.
func (c *FallbackClient) Name() string {
	return c.primary.Name()
}

// Complete sends the request to the primary, then to the fallback on error.
// A cancelled context is not retried.
func (c *FallbackClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	c.logger.Warn().Err(err).
		Str("primary", c.primary.Name()).
		Str("fallback", c.fallback.Name()).
		Msg("Primary LLM failed, trying fallback")

	resp, fallbackErr := c.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		return nil, fmt.Errorf("both providers failed: %v; %w", err, fallbackErr)
	}
	c.logger.Info().Str("fallback", c.fallback.Name()).Msg("Fallback LLM succeeded")
	return resp, nil
}
