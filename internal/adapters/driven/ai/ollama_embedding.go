package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
	"github.com/custodia-labs/sercha-recall/internal/core/ports/driven"
)

// Ensure OllamaEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*OllamaEmbedding)(nil)

const (
	ollamaProvider       = "ollama"
	defaultOllamaBaseURL = "http://localhost:11434"
)

// OllamaEmbedding implements EmbeddingService against a local Ollama server
type OllamaEmbedding struct {
	model   string
	baseURL string
	client  *http.Client

	mu         sync.RWMutex
	dimensions int // learned from the first response
}

// NewOllamaEmbedding creates a new Ollama embedding service
func NewOllamaEmbedding(baseURL, model string) (driven.EmbeddingService, error) {
	if model == "" {
		model = "nomic-embed-text"
	}
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}

	return &OllamaEmbedding{
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(),
	}, nil
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed generates embeddings for multiple texts
func (e *OllamaEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp ollamaEmbedResponse
	req := ollamaEmbedRequest{Model: e.model, Input: texts}
	if err := postJSON(ctx, e.client, ollamaProvider, "embed", e.baseURL+"/api/embed", nil, req, &resp); err != nil {
		return nil, err
	}

	if err := checkBatch(ollamaProvider, len(texts), resp.Embeddings); err != nil {
		return nil, err
	}
	e.learnDimensions(len(resp.Embeddings[0]))
	return resp.Embeddings, nil
}

// EmbedQuery generates an embedding for a search query
func (e *OllamaEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return embedOne(ctx, e, ollamaProvider, query)
}

// Dimensions returns the embedding size, 0 until the first response
func (e *OllamaEmbedding) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimensions
}

// Model returns the model name being used
func (e *OllamaEmbedding) Model() string {
	return e.model
}

// HealthCheck verifies the embedding service is available
func (e *OllamaEmbedding) HealthCheck(ctx context.Context) error {
	_, err := e.EmbedQuery(ctx, "health check")
	return err
}

// Close releases resources held by the embedding service
func (e *OllamaEmbedding) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

func (e *OllamaEmbedding) learnDimensions(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dimensions == 0 {
		e.dimensions = n
	}
}

// checkBatch verifies one non-empty vector per input
func checkBatch(provider string, want int, vectors [][]float32) error {
	if len(vectors) != want {
		return domain.NewUpstreamError(domain.KindMalformed, provider, "embed",
			fmt.Errorf("expected %d embeddings, got %d", want, len(vectors)))
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return domain.NewUpstreamError(domain.KindMalformed, provider, "embed",
				fmt.Errorf("empty embedding for input %d", i))
		}
	}
	return nil
}
