package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
	"github.com/custodia-labs/sercha-recall/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-recall/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/sercha-recall/internal/runtime"
)

// funcEmbedder lets a test script Embed responses
type funcEmbedder struct {
	embedFn func(ctx context.Context, texts []string) ([][]float32, error)
	calls   atomic.Int32
}

func (f *funcEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	return f.embedFn(ctx, texts)
}

func (f *funcEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vs, err := f.embedFn(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (f *funcEmbedder) Dimensions() int                       { return 0 }
func (f *funcEmbedder) Model() string                         { return "func-embedder" }
func (f *funcEmbedder) HealthCheck(ctx context.Context) error { return nil }
func (f *funcEmbedder) Close() error                          { return nil }

func testChunks(n int) []domain.DocChunk {
	chunks := make([]domain.DocChunk, n)
	for i := range chunks {
		chunks[i] = domain.DocChunk{
			ID:      fmt.Sprintf("c%d", i),
			Title:   fmt.Sprintf("Chunk %d", i),
			Content: fmt.Sprintf("content %d", i),
			Meta:    map[string]string{domain.MetaSection: "Action", domain.MetaItemTitle: "Item"},
		}
	}
	return chunks
}

func servicesWith(embedder driven.EmbeddingService, llm driven.LLMService) *runtime.Services {
	svc := runtime.NewServices(domain.NewRuntimeConfig("memory", "none"))
	if embedder != nil {
		svc.SetEmbeddingService(embedder)
	}
	if llm != nil {
		svc.SetLLMService(llm)
	}
	return svc
}

func TestIndexer_BuildsOnceAndMemoizes(t *testing.T) {
	embedder := mocks.NewMockEmbeddingService()
	idx := NewIndexer(IndexerConfig{Chunks: testChunks(5), Services: servicesWith(embedder, nil)})

	first, err := idx.Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, first.Len())
	assert.Equal(t, 8, first.Dimensions)
	assert.Equal(t, "mock-embedding-model", first.Model)

	second, err := idx.Index(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, embedder.EmbedCalls())
}

func TestIndexer_EmbedsDisplayText(t *testing.T) {
	embedder := mocks.NewMockEmbeddingService()
	chunks := []domain.DocChunk{
		{ID: "a", Title: "Kafka (Action)", Content: "Led it.", Meta: map[string]string{
			domain.MetaItemTitle: "Kafka", domain.MetaSection: "Action",
		}},
		{ID: "b", Title: "Bio", Content: "Engineer."},
	}
	idx := NewIndexer(IndexerConfig{Chunks: chunks, Services: servicesWith(embedder, nil)})

	_, err := idx.Index(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Kafka — Action: Led it.", "Bio: Engineer."}, embedder.EmbeddedTexts())
}

func TestIndexer_Batches(t *testing.T) {
	var sizes []int
	var mu sync.Mutex
	embedder := &funcEmbedder{embedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
		mu.Lock()
		sizes = append(sizes, len(texts))
		mu.Unlock()
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = []float32{1, 2, 3}
		}
		return out, nil
	}}
	idx := NewIndexer(IndexerConfig{Chunks: testChunks(10), Services: servicesWith(embedder, nil), BatchSize: 4})

	index, err := idx.Index(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{4, 4, 2}, sizes)
	assert.Equal(t, 10, index.Len())
	for i, c := range index.Chunks {
		assert.Equal(t, fmt.Sprintf("c%d", i), c.ID, "chunk order must be preserved")
	}
}

func TestIndexer_FailureNotRetained(t *testing.T) {
	embedder := mocks.NewMockEmbeddingService()
	quota := domain.NewUpstreamError(domain.KindQuotaExceeded, "openai", "embed", errors.New("insufficient_quota"))
	embedder.SetFailNext(quota)

	idx := NewIndexer(IndexerConfig{Chunks: testChunks(3), Services: servicesWith(embedder, nil)})

	_, err := idx.Index(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIndexBuildFailure)
	assert.ErrorIs(t, err, domain.ErrUpstreamQuotaExceeded, "upstream kind must be preserved")
	assert.False(t, idx.Status().Built)

	index, err := idx.Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, index.Len())
	assert.Equal(t, 2, embedder.EmbedCalls())
}

func TestIndexer_ShortBatchIsMalformed(t *testing.T) {
	embedder := &funcEmbedder{embedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1, 0}}, nil
	}}
	idx := NewIndexer(IndexerConfig{Chunks: testChunks(3), Services: servicesWith(embedder, nil)})

	_, err := idx.Index(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIndexBuildFailure)
	assert.ErrorIs(t, err, domain.ErrUpstreamMalformed)
}

func TestIndexer_EmptyVectorIsMalformed(t *testing.T) {
	embedder := &funcEmbedder{embedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
		return make([][]float32, len(texts)), nil
	}}
	idx := NewIndexer(IndexerConfig{Chunks: testChunks(2), Services: servicesWith(embedder, nil)})

	_, err := idx.Index(context.Background())
	assert.ErrorIs(t, err, domain.ErrUpstreamMalformed)
}

func TestIndexer_DimensionMismatchRejected(t *testing.T) {
	call := 0
	embedder := &funcEmbedder{embedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
		call++
		out := make([][]float32, len(texts))
		for i := range out {
			if call == 1 {
				out[i] = []float32{1, 0, 0}
			} else {
				out[i] = []float32{1, 0}
			}
		}
		return out, nil
	}}
	idx := NewIndexer(IndexerConfig{Chunks: testChunks(4), Services: servicesWith(embedder, nil), BatchSize: 2})

	_, err := idx.Index(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIndexBuildFailure)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.False(t, idx.Status().Built)
}

func TestIndexer_ConcurrentFirstCallsShareOneBuild(t *testing.T) {
	release := make(chan struct{})
	embedder := &funcEmbedder{embedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
		<-release
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = []float32{1, 1}
		}
		return out, nil
	}}
	idx := NewIndexer(IndexerConfig{Chunks: testChunks(3), Services: servicesWith(embedder, nil)})

	const callers = 10
	results := make(chan *domain.Index, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			index, err := idx.Index(context.Background())
			assert.NoError(t, err)
			results <- index
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	var first *domain.Index
	for r := range results {
		if first == nil {
			first = r
		}
		assert.Same(t, first, r)
	}
	assert.Equal(t, int32(1), embedder.calls.Load())
}

func TestIndexer_WaiterHonoursOwnContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	embedder := &funcEmbedder{embedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
		<-release
		return nil, errors.New("unreachable")
	}}
	idx := NewIndexer(IndexerConfig{Chunks: testChunks(1), Services: servicesWith(embedder, nil)})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := idx.Index(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIndexer_NoEmbeddingService(t *testing.T) {
	idx := NewIndexer(IndexerConfig{Chunks: testChunks(1), Services: servicesWith(nil, nil)})

	_, err := idx.Index(context.Background())
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.ErrorIs(t, err, domain.ErrIndexBuildFailure)
	assert.Equal(t, domain.CodeServiceUnavailable, domain.CodeOf(err), "missing provider wins over build failure")
	assert.False(t, idx.Status().Built)
}

func TestIndexer_WarmAndStatus(t *testing.T) {
	clock := newFakeClock()
	embedder := mocks.NewMockEmbeddingService()
	idx := NewIndexer(IndexerConfig{Chunks: testChunks(2), Services: servicesWith(embedder, nil), Clock: clock.Now})

	before := idx.Status()
	assert.False(t, before.Built)
	assert.Equal(t, 2, before.Chunks)
	assert.Nil(t, before.BuiltAt)

	status, err := idx.Warm(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Built)
	assert.Equal(t, 2, status.Chunks)
	assert.Equal(t, 8, status.Dimensions)
	require.NotNil(t, status.BuiltAt)
	assert.Equal(t, clock.Now(), *status.BuiltAt)
}
