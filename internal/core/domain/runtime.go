package domain

import "sync"

// RuntimeConfig tracks which services are available at runtime.
// Thread-safe for concurrent access.
type RuntimeConfig struct {
	mu sync.RWMutex

	// Static (set at startup, read-only)
	RateLimitBackend string // "redis" or "memory"
	QueryLogBackend  string // "postgres" or "none"

	// Dynamic capability flags (updated when AI services change)
	embeddingAvailable bool
	llmAvailable       bool
}

// NewRuntimeConfig creates a new RuntimeConfig with initial values
func NewRuntimeConfig(rateLimitBackend, queryLogBackend string) *RuntimeConfig {
	return &RuntimeConfig{
		RateLimitBackend: rateLimitBackend,
		QueryLogBackend:  queryLogBackend,
	}
}

// EmbeddingAvailable returns whether embedding service is available
func (c *RuntimeConfig) EmbeddingAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.embeddingAvailable
}

// LLMAvailable returns whether generation service is available
func (c *RuntimeConfig) LLMAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.llmAvailable
}

// SetEmbeddingAvailable updates the embedding availability flag
func (c *RuntimeConfig) SetEmbeddingAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.embeddingAvailable = available
}

// SetLLMAvailable updates the generation availability flag
func (c *RuntimeConfig) SetLLMAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.llmAvailable = available
}

// CanAnswer returns true if both embedding and generation are available
func (c *RuntimeConfig) CanAnswer() bool {
	return c.EmbeddingAvailable() && c.LLMAvailable()
}
