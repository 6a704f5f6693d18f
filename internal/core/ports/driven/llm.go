package driven

import (
	"context"
)

// GenerationRequest is a single-turn, grounded completion request
type GenerationRequest struct {
	System      string  // System instruction, may be empty
	Prompt      string  // User prompt including grounding context
	Temperature float64 // 0 means provider default
	MaxTokens   int     // 0 means provider default
}

// LLMService generates free text answers from a composed prompt
type LLMService interface {
	// Generate returns the model's answer for the request.
	// Failures are *domain.UpstreamError classified by kind.
	Generate(ctx context.Context, req GenerationRequest) (string, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the LLM service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the LLM service
	Close() error
}
