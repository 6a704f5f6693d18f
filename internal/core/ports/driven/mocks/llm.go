package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-recall/internal/core/ports/driven"
)

// MockLLMService is a mock implementation of LLMService for testing
type MockLLMService struct {
	mu       sync.Mutex
	answer   string
	err      error
	calls    int
	requests []driven.GenerationRequest

	// GenerateFn overrides the canned answer when set
	GenerateFn func(ctx context.Context, req driven.GenerationRequest) (string, error)
}

// NewMockLLMService creates a mock that always answers with answer
func NewMockLLMService(answer string) *MockLLMService {
	return &MockLLMService{answer: answer}
}

func (m *MockLLMService) Generate(ctx context.Context, req driven.GenerationRequest) (string, error) {
	m.mu.Lock()
	m.calls++
	m.requests = append(m.requests, req)
	fn, answer, err := m.GenerateFn, m.answer, m.err
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return "", err
	}
	return answer, nil
}

func (m *MockLLMService) Model() string {
	return "mock-llm"
}

func (m *MockLLMService) Ping(ctx context.Context) error {
	return nil
}

func (m *MockLLMService) Close() error {
	return nil
}

// SetError makes Generate fail with err (nil clears it)
func (m *MockLLMService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Generate was called
func (m *MockLLMService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastRequest returns the most recent request, if any
func (m *MockLLMService) LastRequest() (driven.GenerationRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return driven.GenerationRequest{}, false
	}
	return m.requests[len(m.requests)-1], true
}
