package memory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/sercha-recall/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.RateLimiter = (*RateLimiter)(nil)

// sweepThreshold is the number of tracked keys above which idle keys are dropped
const sweepThreshold = 10000

// RateLimiter is an in-process token bucket per key.
// A key may burst up to limit requests, refilling at limit per window.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
	now     func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter admitting limit requests per key per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Allow reports whether one more request for key fits the bucket.
func (r *RateLimiter) Allow(_ context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	b, ok := r.buckets[key]
	if !ok {
		if len(r.buckets) >= sweepThreshold {
			r.sweep(now)
		}
		every := r.window / time.Duration(r.limit)
		b = &bucket{limiter: rate.NewLimiter(rate.Every(every), r.limit)}
		r.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1), nil
}

// Ping always succeeds; the limiter has no backend.
func (r *RateLimiter) Ping(context.Context) error {
	return nil
}

// Len returns the number of tracked keys.
func (r *RateLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buckets)
}

// sweep drops keys idle for a full window, by which time their bucket is full again.
func (r *RateLimiter) sweep(now time.Time) {
	for key, b := range r.buckets {
		if now.Sub(b.lastSeen) >= r.window {
			delete(r.buckets, key)
		}
	}
}
