package domain

import "time"

// AIProvider identifies the AI/embedding provider
type AIProvider string

const (
	AIProviderOpenAI    AIProvider = "openai"
	AIProviderAnthropic AIProvider = "anthropic"
	AIProviderOllama    AIProvider = "ollama"
	AIProviderGroq      AIProvider = "groq"
	AIProviderLocal     AIProvider = "local" // sentence-transformers embedding server
)

// EmbeddingSettings configures the embedding service
type EmbeddingSettings struct {
	Provider AIProvider `json:"provider"`
	Model    string     `json:"model"`
	APIKey   string     `json:"-"` // Never serialize to JSON
	BaseURL  string     `json:"base_url,omitempty"`
}

// IsConfigured returns true if embedding settings are properly configured
func (e *EmbeddingSettings) IsConfigured() bool {
	if e.Provider == "" {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings configures the generation service
type LLMSettings struct {
	Provider AIProvider    `json:"provider"`
	Model    string        `json:"model"`
	APIKey   string        `json:"-"` // Never serialize to JSON
	BaseURL  string        `json:"base_url,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty"`
}

// IsConfigured returns true if LLM settings are properly configured
func (l *LLMSettings) IsConfigured() bool {
	if l.Provider == "" {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// RequiresAPIKey returns true if this provider requires an API key
func (p AIProvider) RequiresAPIKey() bool {
	switch p {
	case AIProviderOllama, AIProviderLocal:
		return false // Self-hosted, no API key needed
	default:
		return true
	}
}

// IsValid returns true if this is a known provider
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOpenAI, AIProviderAnthropic, AIProviderOllama, AIProviderGroq, AIProviderLocal:
		return true
	default:
		return false
	}
}

// SupportsEmbedding returns true if the provider can serve embeddings
func (p AIProvider) SupportsEmbedding() bool {
	switch p {
	case AIProviderOpenAI, AIProviderOllama, AIProviderLocal:
		return true
	default:
		return false
	}
}

// SupportsGeneration returns true if the provider can serve text generation
func (p AIProvider) SupportsGeneration() bool {
	switch p {
	case AIProviderOpenAI, AIProviderAnthropic, AIProviderOllama, AIProviderGroq:
		return true
	default:
		return false
	}
}

// RetrievalSettings tunes ranking and quality scoring
type RetrievalSettings struct {
	TopK               int     `json:"top_k"`
	CoverageCeiling    int     `json:"coverage_ceiling"`
	GroundednessWeight float64 `json:"groundedness_weight"`
	CoverageWeight     float64 `json:"coverage_weight"`
}

// DefaultRetrievalSettings returns the production defaults
func DefaultRetrievalSettings() RetrievalSettings {
	return RetrievalSettings{
		TopK:               6,
		CoverageCeiling:    4,
		GroundednessWeight: 0.7,
		CoverageWeight:     0.3,
	}
}

// CacheSettings tunes the semantic cache
type CacheSettings struct {
	Capacity      int           `json:"capacity"`
	TTL           time.Duration `json:"ttl"`
	Threshold     float64       `json:"threshold"`
	PruneInterval time.Duration `json:"prune_interval"`
}

// DefaultCacheSettings returns the production defaults
func DefaultCacheSettings() CacheSettings {
	return CacheSettings{
		Capacity:      64,
		TTL:           20 * time.Minute,
		Threshold:     0.95,
		PruneInterval: time.Minute,
	}
}
