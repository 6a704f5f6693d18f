package mocks

import (
	"context"
	"sync"
)

// MockRateLimiter allows a fixed number of requests per key
type MockRateLimiter struct {
	mu     sync.Mutex
	limit  int
	counts map[string]int

	// AllowFn overrides the counting behaviour when set
	AllowFn func(key string) (bool, error)
}

// NewMockRateLimiter creates a limiter that admits limit requests per key
func NewMockRateLimiter(limit int) *MockRateLimiter {
	return &MockRateLimiter{
		limit:  limit,
		counts: make(map[string]int),
	}
}

func (m *MockRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if m.AllowFn != nil {
		return m.AllowFn(key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key] <= m.limit, nil
}

func (m *MockRateLimiter) Ping(ctx context.Context) error {
	return nil
}

// Count returns how many requests were seen for key
func (m *MockRateLimiter) Count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key]
}
