package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
)

// MockQueryLogStore is an in-memory QueryLogStore for testing
type MockQueryLogStore struct {
	mu        sync.Mutex
	events    []*domain.QueryEvent
	RecordErr error
}

// NewMockQueryLogStore creates an empty store
func NewMockQueryLogStore() *MockQueryLogStore {
	return &MockQueryLogStore{}
}

func (m *MockQueryLogStore) Record(ctx context.Context, event *domain.QueryEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RecordErr != nil {
		return m.RecordErr
	}
	e := *event
	m.events = append(m.events, &e)
	return nil
}

func (m *MockQueryLogStore) Summary(ctx context.Context, since time.Time) (*domain.QueryLogSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	summary := &domain.QueryLogSummary{}
	var latency, overall float64
	for _, e := range m.events {
		if e.CreatedAt.Before(since) {
			continue
		}
		summary.Total++
		if e.Cached {
			summary.Cached++
		}
		if e.ErrorCode != "" {
			summary.Failed++
		}
		latency += float64(e.LatencyMs)
		overall += e.Quality.Overall
	}
	if summary.Total > 0 {
		summary.AvgLatencyMs = latency / float64(summary.Total)
		summary.AvgOverall = overall / float64(summary.Total)
	}
	return summary, nil
}

func (m *MockQueryLogStore) Recent(ctx context.Context, limit int) ([]*domain.QueryEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.QueryEvent
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}

// Events returns every recorded event in insertion order
func (m *MockQueryLogStore) Events() []*domain.QueryEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.QueryEvent(nil), m.events...)
}
