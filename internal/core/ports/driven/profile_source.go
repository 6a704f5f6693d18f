package driven

import (
	"context"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
)

// ProfileSource loads the profile that chunks are derived from
type ProfileSource interface {
	Load(ctx context.Context) (*domain.Profile, error)
}
