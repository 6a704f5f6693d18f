package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-recall/internal/core/ports/driven"
)

// Ensure LocalEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*LocalEmbedding)(nil)

const (
	localProvider       = "local"
	defaultLocalBaseURL = "http://localhost:8000"
	defaultLocalModel   = "all-MiniLM-L6-v2"
)

// LocalEmbedding talks to a self-hosted sentence-transformers server.
//
// The server accepts POST /embed with {"input": ...} where input is a string
// or a list of strings, and answers {"embedding": [...]} for a single string
// or {"embeddings": [[...], ...]} for a list.
type LocalEmbedding struct {
	model   string
	baseURL string
	client  *http.Client

	mu         sync.RWMutex
	dimensions int
}

// NewLocalEmbedding creates a new local embedding service
func NewLocalEmbedding(baseURL, model string) (driven.EmbeddingService, error) {
	if baseURL == "" {
		baseURL = defaultLocalBaseURL
	}
	if model == "" {
		model = defaultLocalModel
	}

	return &LocalEmbedding{
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(),
	}, nil
}

type localEmbedRequest struct {
	Input any    `json:"input"` // string or []string
	Model string `json:"model,omitempty"`
}

type localEmbedResponse struct {
	Embedding  []float32   `json:"embedding"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed generates embeddings for multiple texts
func (e *LocalEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp localEmbedResponse
	req := localEmbedRequest{Input: texts, Model: e.model}
	if err := postJSON(ctx, e.client, localProvider, "embed", e.baseURL+"/embed", nil, req, &resp); err != nil {
		return nil, err
	}

	vectors := resp.Embeddings
	if vectors == nil && resp.Embedding != nil {
		vectors = [][]float32{resp.Embedding}
	}
	if err := checkBatch(localProvider, len(texts), vectors); err != nil {
		return nil, err
	}
	e.learnDimensions(len(vectors[0]))
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query string
func (e *LocalEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	var resp localEmbedResponse
	req := localEmbedRequest{Input: query, Model: e.model}
	if err := postJSON(ctx, e.client, localProvider, "embed", e.baseURL+"/embed", nil, req, &resp); err != nil {
		return nil, err
	}

	vector := resp.Embedding
	if vector == nil && len(resp.Embeddings) == 1 {
		vector = resp.Embeddings[0]
	}
	if err := checkBatch(localProvider, 1, [][]float32{vector}); err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}
	e.learnDimensions(len(vector))
	return vector, nil
}

// Dimensions returns the embedding size, 0 until the first response
func (e *LocalEmbedding) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimensions
}

// Model returns the model name being used
func (e *LocalEmbedding) Model() string {
	return e.model
}

// HealthCheck verifies the embedding server is available
func (e *LocalEmbedding) HealthCheck(ctx context.Context) error {
	_, err := e.EmbedQuery(ctx, "health check")
	return err
}

// Close releases resources held by the embedding service
func (e *LocalEmbedding) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

func (e *LocalEmbedding) learnDimensions(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dimensions == 0 {
		e.dimensions = n
	}
}
