package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
	"github.com/custodia-labs/sercha-recall/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-recall/internal/runtime"
)

// Ensure Indexer implements IndexService
var _ driving.IndexService = (*Indexer)(nil)

// DefaultBatchSize is the number of chunks embedded per upstream call
const DefaultBatchSize = 64

// Indexer builds the embedding index once per process and memoizes it.
//
// Concurrent first calls share one build. A failed build leaves nothing behind
// and the next call starts over.
type Indexer struct {
	chunks    []domain.DocChunk
	services  *runtime.Services
	batchSize int
	logger    *slog.Logger
	now       func() time.Time

	group singleflight.Group

	mu    sync.RWMutex
	index *domain.Index
}

// IndexerConfig holds configuration for the indexer.
type IndexerConfig struct {
	Chunks    []domain.DocChunk
	Services  *runtime.Services // Embedding service is resolved at build time
	BatchSize int               // Chunks per Embed call (default: 64)
	Logger    *slog.Logger
	Clock     func() time.Time
}

// NewIndexer creates an indexer over a fixed chunk set
func NewIndexer(cfg IndexerConfig) *Indexer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	return &Indexer{
		chunks:    cfg.Chunks,
		services:  cfg.Services,
		batchSize: batchSize,
		logger:    logger,
		now:       now,
	}
}

// Index returns the memoized index, building it on first use.
// The build itself is detached from ctx so one impatient caller cannot fail it
// for everyone else; ctx only bounds how long this caller waits.
func (i *Indexer) Index(ctx context.Context) (*domain.Index, error) {
	if idx := i.current(); idx != nil {
		return idx, nil
	}

	ch := i.group.DoChan("index", func() (interface{}, error) {
		if idx := i.current(); idx != nil {
			return idx, nil
		}
		idx, err := i.build(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		i.mu.Lock()
		i.index = idx
		i.mu.Unlock()
		return idx, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.Index), nil
	}
}

// Warm builds the index if needed and reports its status
func (i *Indexer) Warm(ctx context.Context) (domain.IndexStatus, error) {
	if _, err := i.Index(ctx); err != nil {
		return i.Status(), err
	}
	return i.Status(), nil
}

// Status reports the index state without triggering a build
func (i *Indexer) Status() domain.IndexStatus {
	idx := i.current()
	if idx == nil {
		return domain.IndexStatus{Chunks: len(i.chunks)}
	}
	builtAt := idx.BuiltAt
	return domain.IndexStatus{
		Built:      true,
		Chunks:     idx.Len(),
		Dimensions: idx.Dimensions,
		Model:      idx.Model,
		BuiltAt:    &builtAt,
	}
}

func (i *Indexer) current() *domain.Index {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index
}

// build embeds every chunk. Any failure aborts the whole build.
func (i *Indexer) build(ctx context.Context) (*domain.Index, error) {
	embedder, err := i.services.RequireEmbedding()
	if err != nil {
		return nil, i.fail(err)
	}

	start := i.now()
	i.logger.Info("building embedding index", "chunks", len(i.chunks), "batch_size", i.batchSize)

	embedded := make([]domain.EmbeddedChunk, 0, len(i.chunks))
	dims := 0

	for from := 0; from < len(i.chunks); from += i.batchSize {
		to := min(from+i.batchSize, len(i.chunks))
		batch := i.chunks[from:to]

		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.EmbeddingText()
		}

		vectors, err := embedder.Embed(ctx, texts)
		if err != nil {
			return nil, i.fail(err)
		}
		if len(vectors) != len(batch) {
			return nil, i.fail(malformedEmbedding(
				fmt.Errorf("batch %d-%d: expected %d embeddings, got %d", from, to, len(batch), len(vectors))))
		}

		for j, v := range vectors {
			if len(v) == 0 {
				return nil, i.fail(malformedEmbedding(
					fmt.Errorf("empty embedding for chunk %s", batch[j].ID)))
			}
			if dims == 0 {
				dims = len(v)
			}
			if len(v) != dims {
				return nil, i.fail(malformedEmbedding(
					fmt.Errorf("chunk %s: %w: %d != %d", batch[j].ID, domain.ErrDimensionMismatch, len(v), dims)))
			}
			embedded = append(embedded, domain.EmbeddedChunk{DocChunk: batch[j], Embedding: v})
		}
	}

	idx := &domain.Index{
		Chunks:     embedded,
		Dimensions: dims,
		Model:      embedder.Model(),
		BuiltAt:    i.now(),
	}

	i.logger.Info("embedding index ready",
		"chunks", idx.Len(),
		"dimensions", idx.Dimensions,
		"model", idx.Model,
		"duration", i.now().Sub(start),
	)
	return idx, nil
}

func (i *Indexer) fail(err error) error {
	kind, _ := domain.KindOf(err)
	i.logger.Error("embedding index build failed", "kind", kind, "error", err)
	var buildErr *domain.IndexBuildError
	if errors.As(err, &buildErr) {
		return err
	}
	return &domain.IndexBuildError{Err: err}
}

func malformedEmbedding(err error) error {
	return domain.NewUpstreamError(domain.KindMalformed, "embedding", "embed", err)
}
