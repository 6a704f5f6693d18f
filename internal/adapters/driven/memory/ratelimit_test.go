package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(limit int, window time.Duration) (*RateLimiter, *time.Time) {
	rl := NewRateLimiter(limit, window)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestRateLimiter_BurstThenThrottle(t *testing.T) {
	rl, _ := newTestLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "client-a")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}

	ok, err := rl.Allow(ctx, "client-a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRateLimiter_Refills(t *testing.T) {
	rl, now := newTestLimiter(2, time.Minute)
	ctx := context.Background()

	_, _ = rl.Allow(ctx, "client-a")
	_, _ = rl.Allow(ctx, "client-a")
	ok, _ := rl.Allow(ctx, "client-a")
	require.False(t, ok)

	// One token every 30s
	*now = now.Add(30 * time.Second)
	ok, _ = rl.Allow(ctx, "client-a")
	assert.True(t, ok)
	ok, _ = rl.Allow(ctx, "client-a")
	assert.False(t, ok)
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl, _ := newTestLimiter(1, time.Minute)
	ctx := context.Background()

	ok, _ := rl.Allow(ctx, "client-a")
	assert.True(t, ok)
	ok, _ = rl.Allow(ctx, "client-b")
	assert.True(t, ok)
	ok, _ = rl.Allow(ctx, "client-a")
	assert.False(t, ok)
	assert.Equal(t, 2, rl.Len())
}

func TestRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	assert.Equal(t, 1, rl.limit)
	assert.Equal(t, time.Minute, rl.window)
	assert.NoError(t, rl.Ping(context.Background()))
}

func TestRateLimiter_SweepsIdleKeys(t *testing.T) {
	rl, now := newTestLimiter(1, time.Minute)
	ctx := context.Background()

	for i := 0; i < sweepThreshold; i++ {
		_, _ = rl.Allow(ctx, fmt.Sprintf("client-%d", i))
	}
	require.Equal(t, sweepThreshold, rl.Len())

	*now = now.Add(2 * time.Minute)
	_, _ = rl.Allow(ctx, "fresh")

	assert.Equal(t, 1, rl.Len())
}

func TestRateLimiter_Concurrent(t *testing.T) {
	rl := NewRateLimiter(50, time.Hour)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := rl.Allow(ctx, "shared"); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}
