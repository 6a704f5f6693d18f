package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
)

// QueryService answers questions grounded in the indexed profile
type QueryService interface {
	// Query validates, embeds and answers a question, consulting the semantic cache first
	Query(ctx context.Context, req domain.QueryRequest) (*domain.QueryResult, error)

	// Search ranks profile chunks against query without generating an answer.
	// k <= 0 uses the configured top-K; larger values are capped at the index size.
	Search(ctx context.Context, query string, k int) ([]domain.Source, error)

	// Stats returns semantic cache counters
	Stats(ctx context.Context) domain.CacheStats

	// History returns recent query events and a summary of events since since.
	// Returns ErrServiceUnavailable when no query log is configured.
	History(ctx context.Context, limit int, since time.Time) (*domain.QueryHistory, error)
}
