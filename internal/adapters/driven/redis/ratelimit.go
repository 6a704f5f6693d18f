package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-recall/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.RateLimiter = (*RateLimiter)(nil)

const rateLimitPrefix = "recall:ratelimit:"

// RateLimiter implements RateLimiter as a fixed window counter in Redis.
// Every instance sharing the Redis database shares the budget.
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRateLimiter creates a limiter admitting limit requests per key per window.
func NewRateLimiter(client *redis.Client, limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// incrScript increments the window counter and starts the window's
// expiry on the first hit, atomically.
var incrScript = redis.NewScript(`
	local n = redis.call("incr", KEYS[1])
	if n == 1 then
		redis.call("pexpire", KEYS[1], ARGV[1])
	end
	return n
`)

// Allow counts one request for key and reports whether it is within budget.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	n, err := incrScript.Run(ctx, r.client, []string{rateLimitPrefix + key}, r.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return n <= int64(r.limit), nil
}

// Ping checks if the Redis backend is healthy.
func (r *RateLimiter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
