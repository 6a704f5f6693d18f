package driving

import (
	"context"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
)

// IndexService exposes the embedding index lifecycle
type IndexService interface {
	// Warm builds the index if it has not been built yet
	Warm(ctx context.Context) (domain.IndexStatus, error)

	// Status reports the current index state without building it
	Status() domain.IndexStatus
}
