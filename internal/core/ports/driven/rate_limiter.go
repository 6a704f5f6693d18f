package driven

import (
	"context"
)

// RateLimiter throttles requests per caller identity
type RateLimiter interface {
	// Allow reports whether one more request for key fits in the current budget
	Allow(ctx context.Context, key string) (bool, error)

	// Ping checks if the limiter backend is healthy
	Ping(ctx context.Context) error
}
