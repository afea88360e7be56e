package llm

import (
	"context"
	"fmt"

	"github.com/ppiankov/broadlistening/internal/worker"
)

// RateLimitedClient waits for a per-model token before each request
type RateLimitedClient struct {
	next    Client
	limiter *worker.Limiter
}

// NewRateLimitedClient wraps next with a per-model rate limiter
func NewRateLimitedClient(next Client, limiter *worker.Limiter) *RateLimitedClient {
	return &RateLimitedClient{next: next, limiter: limiter}
}

// Name returns the wrapped provider name
func (c *RateLimitedClient) Name() string {
	return c.next.Name()
}

// Send blocks until the model's bucket has a token, then forwards the request
func (c *RateLimitedClient) Send(ctx context.Context, req Request) (*Response, error) {
	if err := c.limiter.Wait(ctx, req.Model); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return c.next.Send(ctx, req)
}
