package ai

import (
	"fmt"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
	"github.com/custodia-labs/sercha-recall/internal/core/ports/driven"
)

// Ensure Factory implements AIServiceFactory
var _ driven.AIServiceFactory = (*Factory)(nil)

// Factory creates AI services based on configuration
type Factory struct {
	retry RetryConfig
}

// NewFactory creates a new AI service factory.
// Embedding services it creates retry transient failures per retry.
func NewFactory(retry RetryConfig) *Factory {
	return &Factory{retry: retry}
}

// CreateEmbeddingService creates an embedding service from settings
func (f *Factory) CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	var (
		svc driven.EmbeddingService
		err error
	)
	switch settings.Provider {
	case domain.AIProviderOpenAI:
		svc, err = NewOpenAIEmbedding(settings.APIKey, settings.Model, settings.BaseURL)
	case domain.AIProviderOllama:
		svc, err = NewOllamaEmbedding(settings.BaseURL, settings.Model)
	case domain.AIProviderLocal:
		svc, err = NewLocalEmbedding(settings.BaseURL, settings.Model)
	default:
		return nil, fmt.Errorf("%w: %s does not provide embeddings", domain.ErrInvalidProvider, settings.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewRetryingEmbedding(svc, f.retry), nil
}

// CreateLLMService creates a generation service from settings
func (f *Factory) CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOpenAI:
		return NewOpenAILLM(settings.APIKey, settings.Model, settings.BaseURL)
	case domain.AIProviderGroq:
		return NewGroqLLM(settings.APIKey, settings.Model, settings.BaseURL)
	case domain.AIProviderAnthropic:
		return NewAnthropicLLM(settings.APIKey, settings.Model, settings.BaseURL)
	case domain.AIProviderOllama:
		return NewOllamaLLM(settings.BaseURL, settings.Model)
	default:
		return nil, fmt.Errorf("%w: %s does not provide generation", domain.ErrInvalidProvider, settings.Provider)
	}
}
