package ai

import (
	"context"
	"log/slog"
	"time"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
	"github.com/custodia-labs/sercha-recall/internal/core/ports/driven"
)

// Ensure RetryingEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*RetryingEmbedding)(nil)

// Retry defaults for embedding calls
const (
	DefaultEmbeddingMaxRetries = 2
	DefaultEmbeddingRetryDelay = 500 * time.Millisecond
)

// RetryingEmbedding retries transient embedding failures with exponential
// backoff. Quota and malformed failures are returned immediately.
type RetryingEmbedding struct {
	driven.EmbeddingService
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// RetryConfig tunes RetryingEmbedding.
type RetryConfig struct {
	MaxRetries int           // Retries after the first attempt (default: 2, negative disables)
	BaseDelay  time.Duration // First backoff, doubled each retry (default: 500ms)
	Logger     *slog.Logger
}

// NewRetryingEmbedding wraps svc with transient-failure retries
func NewRetryingEmbedding(svc driven.EmbeddingService, cfg RetryConfig) *RetryingEmbedding {
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultEmbeddingMaxRetries
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	baseDelay := cfg.BaseDelay
	if baseDelay <= 0 {
		baseDelay = DefaultEmbeddingRetryDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &RetryingEmbedding{
		EmbeddingService: svc,
		maxRetries:       maxRetries,
		baseDelay:        baseDelay,
		logger:           logger,
		sleep:            sleepCtx,
	}
}

// Embed generates embeddings, retrying transient failures
func (r *RetryingEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := r.do(ctx, "embed", func() error {
		var err error
		out, err = r.EmbeddingService.Embed(ctx, texts)
		return err
	})
	return out, err
}

// EmbedQuery generates a query embedding, retrying transient failures
func (r *RetryingEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	var out []float32
	err := r.do(ctx, "embed_query", func() error {
		var err error
		out, err = r.EmbeddingService.EmbedQuery(ctx, query)
		return err
	})
	return out, err
}

func (r *RetryingEmbedding) do(ctx context.Context, op string, fn func() error) error {
	delay := r.baseDelay
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		kind, ok := domain.KindOf(err)
		if !ok || !kind.Retryable() || attempt >= r.maxRetries {
			return err
		}

		r.logger.Warn("transient embedding failure, retrying",
			"op", op,
			"attempt", attempt+1,
			"max_retries", r.maxRetries,
			"delay", delay,
			"error", err,
		)
		if serr := r.sleep(ctx, delay); serr != nil {
			return err
		}
		delay *= 2
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
