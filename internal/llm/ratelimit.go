package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitedClient paces requests to a provider
type RateLimitedClient struct {
	next    Client
	limiter *rate.Limiter
}

// NewRateLimitedClient allows n requests per period, with a burst of one
// period's worth at most
func NewRateLimitedClient(next Client, n int, period time.Duration) *RateLimitedClient {
	burst := n
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedClient{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(period/time.Duration(burst)), burst),
	}
}

// Name returns the wrapped provider name.
func (c *RateLimitedClient) Name() string {
	return c.next.Name()
}

// Complete waits for a token, honouring the context deadline
func (c *RateLimitedClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return c.next.Complete(ctx, req)
}
