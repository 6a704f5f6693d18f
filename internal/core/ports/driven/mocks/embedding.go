package mocks

import (
	"context"
	"hash/fnv"
	"sync"
)

// MockEmbeddingService is a mock implementation of EmbeddingService for testing.
// Texts registered with SetVector return that vector; anything else gets a
// deterministic hash-derived embedding.
type MockEmbeddingService struct {
	mu         sync.Mutex
	dimensions int
	model      string
	vectors    map[string][]float32
	failNext   error
	failAlways error

	embedCalls int
	queryCalls int
	texts      []string
}

// NewMockEmbeddingService creates a new MockEmbeddingService
func NewMockEmbeddingService() *MockEmbeddingService {
	return &MockEmbeddingService{
		dimensions: 8,
		model:      "mock-embedding-model",
		vectors:    make(map[string][]float32),
	}
}

func (m *MockEmbeddingService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.embedCalls++
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	result := make([][]float32, len(texts))
	for i, text := range texts {
		m.texts = append(m.texts, text)
		result[i] = m.vectorFor(text)
	}
	return result, nil
}

func (m *MockEmbeddingService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queryCalls++
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	return m.vectorFor(query), nil
}

func (m *MockEmbeddingService) Dimensions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dimensions
}

func (m *MockEmbeddingService) Model() string {
	return m.model
}

func (m *MockEmbeddingService) HealthCheck(ctx context.Context) error {
	return nil
}

func (m *MockEmbeddingService) Close() error {
	return nil
}

func (m *MockEmbeddingService) takeFailure() error {
	if m.failAlways != nil {
		return m.failAlways
	}
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	return nil
}

func (m *MockEmbeddingService) vectorFor(text string) []float32 {
	if v, ok := m.vectors[text]; ok {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}
	return m.generateEmbedding(text)
}

// generateEmbedding generates a deterministic embedding based on text hash
func (m *MockEmbeddingService) generateEmbedding(text string) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	embedding := make([]float32, m.dimensions)
	for i := range embedding {
		// Generate deterministic pseudo-random values
		seed = seed*1103515245 + 12345
		embedding[i] = float32(seed%1000) / 1000.0
	}
	return embedding
}

// Helper methods for testing

// SetVector pins the embedding returned for text
func (m *MockEmbeddingService) SetVector(text string, v []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[text] = v
}

// SetFailNext makes the next call fail with err
func (m *MockEmbeddingService) SetFailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

// SetFailAlways makes every call fail with err until cleared with nil
func (m *MockEmbeddingService) SetFailAlways(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAlways = err
}

func (m *MockEmbeddingService) SetDimensions(dim int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dimensions = dim
}

// EmbedCalls returns how many times Embed was called
func (m *MockEmbeddingService) EmbedCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embedCalls
}

// QueryCalls returns how many times EmbedQuery was called
func (m *MockEmbeddingService) QueryCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queryCalls
}

// EmbeddedTexts returns every text passed to Embed, in order
func (m *MockEmbeddingService) EmbeddedTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}
