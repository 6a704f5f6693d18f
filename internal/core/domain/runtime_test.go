package domain

import (
	"sync"
	"testing"
)

func TestNewRuntimeConfig(t *testing.T) {
	config := NewRuntimeConfig("redis", "postgres")

	if config == nil {
		t.Fatal("expected non-nil config")
	}
	if config.RateLimitBackend != "redis" {
		t.Errorf("expected redis, got %s", config.RateLimitBackend)
	}
	if config.QueryLogBackend != "postgres" {
		t.Errorf("expected postgres, got %s", config.QueryLogBackend)
	}
	if config.EmbeddingAvailable() {
		t.Error("expected embedding to be unavailable initially")
	}
	if config.LLMAvailable() {
		t.Error("expected LLM to be unavailable initially")
	}
}

func TestRuntimeConfig_EmbeddingAvailable(t *testing.T) {
	config := NewRuntimeConfig("memory", "none")

	config.SetEmbeddingAvailable(true)
	if !config.EmbeddingAvailable() {
		t.Error("expected embedding to be available after setting")
	}

	config.SetEmbeddingAvailable(false)
	if config.EmbeddingAvailable() {
		t.Error("expected embedding to be unavailable after unsetting")
	}
}

func TestRuntimeConfig_CanAnswer(t *testing.T) {
	tests := []struct {
		name      string
		embedding bool
		llm       bool
		expected  bool
	}{
		{"neither", false, false, false},
		{"embedding only", true, false, false},
		{"llm only", false, true, false},
		{"both", true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewRuntimeConfig("memory", "none")
			config.SetEmbeddingAvailable(tt.embedding)
			config.SetLLMAvailable(tt.llm)

			if got := config.CanAnswer(); got != tt.expected {
				t.Errorf("expected CanAnswer=%v, got %v", tt.expected, got)
			}
		})
	}
}

func TestRuntimeConfig_ConcurrentAccess(t *testing.T) {
	config := NewRuntimeConfig("memory", "none")
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(v bool) {
			defer wg.Done()
			config.SetEmbeddingAvailable(v)
			config.SetLLMAvailable(!v)
		}(i%2 == 0)
		go func() {
			defer wg.Done()
			_ = config.CanAnswer()
		}()
	}

	wg.Wait()
}
