package remote

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/time/rate"

	"github.com/rzpsarthak13/smartsync/internal/core"
)

// RateLimitedClient wraps a RemoteClient so calls never exceed a fixed rate.
// Each call may also be bounded by a per-request timeout.
type RateLimitedClient struct {
	next    core.RemoteClient
	limiter *rate.Limiter
	timeout time.Duration
}

// NewRateLimitedClient wraps next. requestsPerSecond <= 0 disables limiting;
// timeout <= 0 leaves the caller's deadline untouched.
func NewRateLimitedClient(next core.RemoteClient, requestsPerSecond float64, burst int, timeout time.Duration) *RateLimitedClient {
	c := &RateLimitedClient{next: next, timeout: timeout}
	if requestsPerSecond > 0 {
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return c
}

// Send waits for a token, then forwards the request.
func (c *RateLimitedClient) Send(ctx context.Context, request *core.RemoteRequest) (*core.RemoteResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			log.Printf("[REMOTE] Rate limiter error: %v", err)
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.next.Send(ctx, request)
}

// Close closes the wrapped client.
func (c *RateLimitedClient) Close() error {
	return c.next.Close()
}

// Unwrap returns the wrapped client.
func (c *RateLimitedClient) Unwrap() core.RemoteClient {
	return c.next
}
