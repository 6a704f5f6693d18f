package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
)

// QueryLogStore records answered and failed queries for later analysis
type QueryLogStore interface {
	// Record stores a query event
	Record(ctx context.Context, event *domain.QueryEvent) error

	// Summary aggregates events created at or after since
	Summary(ctx context.Context, since time.Time) (*domain.QueryLogSummary, error)

	// Recent returns the newest events, newest first
	Recent(ctx context.Context, limit int) ([]*domain.QueryEvent, error)
}
