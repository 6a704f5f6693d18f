package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
	"github.com/custodia-labs/sercha-recall/internal/core/ports/driven/mocks"
)

func newTestRetrying(inner *mocks.MockEmbeddingService, maxRetries int) (*RetryingEmbedding, *[]time.Duration) {
	r := NewRetryingEmbedding(inner, RetryConfig{MaxRetries: maxRetries, BaseDelay: 500 * time.Millisecond})
	var delays []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	return r, &delays
}

func transient() error {
	return domain.NewUpstreamError(domain.KindTransient, "openai", "embed", errors.New("503"))
}

func TestRetryingEmbedding_RetriesTransientWithBackoff(t *testing.T) {
	inner := mocks.NewMockEmbeddingService()
	inner.SetFailAlways(transient())
	r, delays := newTestRetrying(inner, 2)

	_, err := r.Embed(context.Background(), []string{"a"})

	assert.ErrorIs(t, err, domain.ErrUpstreamTransient)
	assert.Equal(t, 3, inner.EmbedCalls(), "one attempt plus two retries")
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, *delays)
}

func TestRetryingEmbedding_RecoversAfterTransient(t *testing.T) {
	inner := mocks.NewMockEmbeddingService()
	inner.SetFailNext(transient())
	r, delays := newTestRetrying(inner, 2)

	out, err := r.EmbedQuery(context.Background(), "q")

	require.NoError(t, err)
	assert.Len(t, out, 8)
	assert.Equal(t, 2, inner.QueryCalls())
	assert.Len(t, *delays, 1)
}

func TestRetryingEmbedding_DoesNotRetryQuotaOrMalformed(t *testing.T) {
	for _, kind := range []domain.ErrorKind{domain.KindQuotaExceeded, domain.KindMalformed} {
		t.Run(string(kind), func(t *testing.T) {
			inner := mocks.NewMockEmbeddingService()
			inner.SetFailAlways(domain.NewUpstreamError(kind, "openai", "embed", errors.New("no")))
			r, delays := newTestRetrying(inner, 2)

			_, err := r.Embed(context.Background(), []string{"a"})

			require.Error(t, err)
			assert.Equal(t, 1, inner.EmbedCalls())
			assert.Empty(t, *delays)
		})
	}
}

func TestRetryingEmbedding_DoesNotRetryUnclassified(t *testing.T) {
	inner := mocks.NewMockEmbeddingService()
	inner.SetFailAlways(errors.New("boom"))
	r, _ := newTestRetrying(inner, 2)

	_, err := r.Embed(context.Background(), []string{"a"})

	require.Error(t, err)
	assert.Equal(t, 1, inner.EmbedCalls())
}

func TestRetryingEmbedding_StopsWhenContextDone(t *testing.T) {
	inner := mocks.NewMockEmbeddingService()
	inner.SetFailAlways(transient())
	r, _ := newTestRetrying(inner, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Embed(ctx, []string{"a"})

	assert.ErrorIs(t, err, domain.ErrUpstreamTransient)
	assert.Equal(t, 1, inner.EmbedCalls())
}

func TestRetryingEmbedding_NegativeDisablesRetries(t *testing.T) {
	inner := mocks.NewMockEmbeddingService()
	inner.SetFailAlways(transient())
	r, _ := newTestRetrying(inner, -1)

	_, err := r.Embed(context.Background(), []string{"a"})

	require.Error(t, err)
	assert.Equal(t, 1, inner.EmbedCalls())
}

func TestRetryingEmbedding_PassesThroughMetadata(t *testing.T) {
	inner := mocks.NewMockEmbeddingService()
	r := NewRetryingEmbedding(inner, RetryConfig{})

	assert.Equal(t, inner.Model(), r.Model())
	assert.Equal(t, inner.Dimensions(), r.Dimensions())
	assert.Equal(t, DefaultEmbeddingMaxRetries, r.maxRetries)
	assert.Equal(t, DefaultEmbeddingRetryDelay, r.baseDelay)
	assert.NoError(t, r.HealthCheck(context.Background()))
}

func TestSleepCtx(t *testing.T) {
	assert.NoError(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
}
