package services

import (
	"sync"
	"time"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
	"github.com/custodia-labs/sercha-recall/internal/core/vector"
)

// SemanticCache remembers generated answers keyed by query embedding.
//
// Entries are held newest-first. Lookup never mutates the entry list: expired
// entries are hidden from lookups and removed only by Prune. There is no
// promotion on read, so eviction order is insertion order.
type SemanticCache struct {
	mu       sync.RWMutex
	entries  []*domain.CacheEntry
	capacity int
	ttl      time.Duration
	now      func() time.Time

	statsMu      sync.Mutex
	hits         int64
	misses       int64
	totalLatency time.Duration
	requests     int64
}

// CacheOption configures a SemanticCache
type CacheOption func(*SemanticCache)

// WithClock overrides the cache's time source
func WithClock(now func() time.Time) CacheOption {
	return func(c *SemanticCache) {
		c.now = now
	}
}

// NewSemanticCache creates an empty cache. Non-positive capacity or ttl fall
// back to the defaults.
func NewSemanticCache(capacity int, ttl time.Duration, opts ...CacheOption) *SemanticCache {
	defaults := domain.DefaultCacheSettings()
	if capacity <= 0 {
		capacity = defaults.Capacity
	}
	if ttl <= 0 {
		ttl = defaults.TTL
	}

	c := &SemanticCache{
		entries:  make([]*domain.CacheEntry, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns the live entry most similar to queryEmbedding when that
// similarity is at least threshold. Among equal similarities the most recently
// inserted entry wins. Entries of a different dimensionality are skipped.
func (c *SemanticCache) Lookup(queryEmbedding []float32, threshold float64) (*domain.CacheEntry, float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	var best *domain.CacheEntry
	bestSim := 0.0

	for _, e := range c.entries {
		if e.Age(now) > c.ttl {
			continue
		}
		sim, err := vector.Cosine(queryEmbedding, e.QueryEmbedding)
		if err != nil {
			continue
		}
		// Strict improvement keeps the newest of equal candidates
		if best == nil || sim > bestSim {
			best = e
			bestSim = sim
		}
	}

	if best == nil || bestSim < threshold {
		return nil, bestSim, false
	}
	return best, bestSim, true
}

// Insert adds entry as the newest, evicting the oldest entries beyond capacity.
// A zero CreatedAt is stamped with the cache clock.
func (c *SemanticCache) Insert(entry domain.CacheEntry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = c.now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = append(c.entries, nil)
	copy(c.entries[1:], c.entries)
	c.entries[0] = &entry

	if len(c.entries) > c.capacity {
		clear(c.entries[c.capacity:])
		c.entries = c.entries[:c.capacity]
	}
}

// Prune removes expired entries and returns how many were dropped
func (c *SemanticCache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	kept := c.entries[:0]
	for _, e := range c.entries {
		if e.Age(now) <= c.ttl {
			kept = append(kept, e)
		}
	}
	removed := len(c.entries) - len(kept)
	clear(c.entries[len(kept):])
	c.entries = kept
	return removed
}

// Len returns the number of stored entries, expired ones included until pruned
func (c *SemanticCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Capacity returns the maximum number of entries
func (c *SemanticCache) Capacity() int {
	return c.capacity
}

// TTL returns the entry lifetime
func (c *SemanticCache) TTL() time.Duration {
	return c.ttl
}

// RecordHit counts a query answered from the cache
func (c *SemanticCache) RecordHit() {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	c.hits++
}

// RecordMiss counts a query answered by a successful generation.
// Failed misses are not counted; they show up in the query log instead.
func (c *SemanticCache) RecordMiss() {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	c.misses++
}

// RecordLatency adds one completed request to the latency average
func (c *SemanticCache) RecordLatency(d time.Duration) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	c.requests++
	c.totalLatency += d
}

// Stats returns a snapshot of the cache counters
func (c *SemanticCache) Stats() domain.CacheStats {
	entries := c.Len()

	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	stats := domain.CacheStats{
		Entries:  entries,
		Capacity: c.capacity,
		Hits:     c.hits,
		Misses:   c.misses,
		Requests: c.requests,
	}
	if lookups := c.hits + c.misses; lookups > 0 {
		stats.HitRate = roundTo(float64(c.hits)/float64(lookups), 3)
	}
	if c.requests > 0 {
		avg := float64(c.totalLatency.Microseconds()) / float64(c.requests) / 1000
		stats.AvgLatencyMs = roundTo(avg, 2)
	}
	return stats
}
