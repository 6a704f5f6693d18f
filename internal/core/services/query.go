package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
	"github.com/custodia-labs/sercha-recall/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-recall/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-recall/internal/core/vector"
	"github.com/custodia-labs/sercha-recall/internal/runtime"
)

// Ensure queryService implements QueryService
var _ driving.QueryService = (*queryService)(nil)

// DefaultGenerationTimeout bounds one shared answer generation
const DefaultGenerationTimeout = 60 * time.Second

// History page bounds
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// QueryServiceConfig holds the collaborators and tuning for query answering.
type QueryServiceConfig struct {
	Services *runtime.Services // Embedding and generation, resolved per query
	Indexer  *Indexer
	Cache    *SemanticCache
	Scorer   *QualityScorer
	Prompts  *PromptBuilder
	QueryLog driven.QueryLogStore // Optional: nil disables query recording
	Logger   *slog.Logger

	TopK              int           // Chunks used as context (default: 6)
	Threshold         float64       // Cache similarity threshold (default: 0.95)
	MaxQueryLength    int           // Runes (default: 300)
	GenerationTimeout time.Duration // Bound on one miss (default: 60s)
	Clock             func() time.Time
}

// queryService implements the QueryService interface
type queryService struct {
	services *runtime.Services
	indexer  *Indexer
	cache    *SemanticCache
	scorer   *QualityScorer
	prompts  *PromptBuilder
	queryLog driven.QueryLogStore
	logger   *slog.Logger

	topK              int
	threshold         float64
	maxQueryLength    int
	generationTimeout time.Duration
	now               func() time.Time

	inflight singleflight.Group
}

// answer is the shared outcome of one coalesced miss
type answer struct {
	text    string
	quality domain.QualityScore
	sources []domain.Source
}

// NewQueryService creates a new QueryService
func NewQueryService(cfg QueryServiceConfig) driving.QueryService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retrieval := domain.DefaultRetrievalSettings()
	cacheDefaults := domain.DefaultCacheSettings()

	topK := cfg.TopK
	if topK <= 0 {
		topK = retrieval.TopK
	}
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = cacheDefaults.Threshold
	}
	timeout := cfg.GenerationTimeout
	if timeout <= 0 {
		timeout = DefaultGenerationTimeout
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	scorer := cfg.Scorer
	if scorer == nil {
		scorer = NewQualityScorer(retrieval)
	}
	prompts := cfg.Prompts
	if prompts == nil {
		prompts = NewPromptBuilder("the candidate", "")
	}
	cache := cfg.Cache
	if cache == nil {
		cache = NewSemanticCache(cacheDefaults.Capacity, cacheDefaults.TTL)
	}

	return &queryService{
		services:          cfg.Services,
		indexer:           cfg.Indexer,
		cache:             cache,
		scorer:            scorer,
		prompts:           prompts,
		queryLog:          cfg.QueryLog,
		logger:            logger,
		topK:              topK,
		threshold:         threshold,
		maxQueryLength:    cfg.MaxQueryLength,
		generationTimeout: timeout,
		now:               now,
	}
}

// Query answers a question, from the semantic cache when a close enough
// question was answered recently, otherwise by retrieval and generation.
func (s *queryService) Query(ctx context.Context, req domain.QueryRequest) (*domain.QueryResult, error) {
	start := s.now()

	result, err := s.run(ctx, req.Query)

	latency := s.now().Sub(start)
	if err == nil {
		result.Meta.LatencyMs = latency.Milliseconds()
		s.cache.RecordLatency(latency)
	}
	s.record(ctx, req, result, err, latency)

	if err != nil {
		var stageErr *domain.StageError
		if errors.As(err, &stageErr) && stageErr.Stage != domain.StageValidate {
			s.logger.Warn("query failed",
				"stage", stageErr.Stage,
				"code", domain.CodeOf(err),
				"client_id", req.ClientID,
				"error", err,
			)
		}
		return nil, err
	}
	return result, nil
}

func (s *queryService) run(ctx context.Context, raw string) (*domain.QueryResult, error) {
	query, err := ValidateQuery(raw, s.maxQueryLength)
	if err != nil {
		return nil, &domain.StageError{Stage: domain.StageValidate, Err: err}
	}

	embedder, err := s.services.RequireEmbedding()
	if err != nil {
		return nil, &domain.StageError{Stage: domain.StageEmbedQuery, Err: err}
	}
	queryEmbedding, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, &domain.StageError{Stage: domain.StageEmbedQuery, Err: err}
	}

	if entry, sim, ok := s.cache.Lookup(queryEmbedding, s.threshold); ok {
		s.cache.RecordHit()
		s.logger.Debug("semantic cache hit", "similarity", sim, "cached_query", entry.Query)
		return &domain.QueryResult{
			Answer:  entry.Answer,
			Quality: entry.Quality,
			Sources: []domain.Source{},
			Meta:    domain.QueryMeta{Cached: true},
		}, nil
	}
	// Identical questions in flight share one generation. The shared work is
	// detached from any single caller and bounded by the generation timeout.
	detached := context.WithoutCancel(ctx)
	ch := s.inflight.DoChan(Fingerprint(query), func() (interface{}, error) {
		genCtx, cancel := context.WithTimeout(detached, s.generationTimeout)
		defer cancel()
		return s.answerMiss(genCtx, query, queryEmbedding)
	})

	select {
	case <-ctx.Done():
		return nil, &domain.StageError{Stage: domain.StageGenerate, Err: classifyTimeout("generation", "generate", ctx.Err())}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		s.cache.RecordMiss()
		a := res.Val.(*answer)
		return &domain.QueryResult{
			Answer:  a.text,
			Quality: a.quality,
			Sources: a.sources,
			Meta:    domain.QueryMeta{Cached: false},
		}, nil
	}
}

// answerMiss runs index, rank, generate, score and cache_insert.
func (s *queryService) answerMiss(ctx context.Context, query string, queryEmbedding []float32) (*answer, error) {
	idx, err := s.indexer.Index(ctx)
	if err != nil {
		return nil, &domain.StageError{Stage: domain.StageIndex, Err: classifyTimeout("embedding", "index", err)}
	}

	ranked, err := vector.TopK(queryEmbedding, idx.Chunks, s.topK)
	if err != nil {
		return nil, &domain.StageError{Stage: domain.StageRank, Err: err}
	}

	llm, err := s.services.RequireLLM()
	if err != nil {
		return nil, &domain.StageError{Stage: domain.StageGenerate, Err: err}
	}
	text, err := llm.Generate(ctx, s.prompts.Build(query, ranked))
	if err != nil {
		return nil, &domain.StageError{Stage: domain.StageGenerate, Err: classifyTimeout(llm.Model(), "generate", err)}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &domain.StageError{
			Stage: domain.StageGenerate,
			Err:   domain.NewUpstreamError(domain.KindMalformed, llm.Model(), "generate", errors.New("empty completion")),
		}
	}

	quality := s.scorer.Score(ranked)

	s.cache.Insert(domain.CacheEntry{
		Query:          query,
		QueryEmbedding: queryEmbedding,
		Answer:         text,
		Quality:        quality,
		CreatedAt:      s.now(),
	})

	return &answer{
		text:    text,
		quality: quality,
		sources: Sources(ranked),
	}, nil
}

// Search ranks profile chunks against query. It never consults the cache
// or the generation service.
func (s *queryService) Search(ctx context.Context, raw string, k int) ([]domain.Source, error) {
	query, err := ValidateQuery(raw, s.maxQueryLength)
	if err != nil {
		return nil, &domain.StageError{Stage: domain.StageValidate, Err: err}
	}

	embedder, err := s.services.RequireEmbedding()
	if err != nil {
		return nil, &domain.StageError{Stage: domain.StageEmbedQuery, Err: err}
	}
	queryEmbedding, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, &domain.StageError{Stage: domain.StageEmbedQuery, Err: err}
	}

	idx, err := s.indexer.Index(ctx)
	if err != nil {
		return nil, &domain.StageError{Stage: domain.StageIndex, Err: classifyTimeout("embedding", "index", err)}
	}

	if k <= 0 {
		k = s.topK
	}
	k = min(k, idx.Len())

	ranked, err := vector.TopK(queryEmbedding, idx.Chunks, k)
	if err != nil {
		return nil, &domain.StageError{Stage: domain.StageRank, Err: err}
	}
	return Sources(ranked), nil
}

// Stats returns semantic cache counters
func (s *queryService) Stats(ctx context.Context) domain.CacheStats {
	return s.cache.Stats()
}

// History returns recent query events and a summary of those since since
func (s *queryService) History(ctx context.Context, limit int, since time.Time) (*domain.QueryHistory, error) {
	if s.queryLog == nil {
		return nil, fmt.Errorf("%w: query log not configured", domain.ErrServiceUnavailable)
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	summary, err := s.queryLog.Summary(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("summarise query log: %w", err)
	}
	recent, err := s.queryLog.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent queries: %w", err)
	}
	return &domain.QueryHistory{Summary: *summary, Recent: recent}, nil
}

// record writes the query event to the log. Failures are logged and dropped.
func (s *queryService) record(ctx context.Context, req domain.QueryRequest, result *domain.QueryResult, queryErr error, latency time.Duration) {
	if s.queryLog == nil {
		return
	}

	event := &domain.QueryEvent{
		ID:        uuid.New().String(),
		ClientID:  req.ClientID,
		Query:     truncateRunes(strings.TrimSpace(req.Query), DefaultMaxQueryLength),
		LatencyMs: latency.Milliseconds(),
		CreatedAt: s.now(),
	}
	if result != nil {
		event.Cached = result.Meta.Cached
		event.Quality = result.Quality
		event.SourceCount = len(result.Sources)
	}
	if queryErr != nil {
		event.ErrorCode = domain.CodeOf(queryErr)
		var stageErr *domain.StageError
		if errors.As(queryErr, &stageErr) {
			event.FailedStage = stageErr.Stage
		}
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.queryLog.Record(recordCtx, event); err != nil {
		s.logger.Warn("failed to record query event", "event_id", event.ID, "error", err)
	}
}

// Fingerprint identifies a question for coalescing: lower-cased with runs of
// whitespace collapsed, then SHA-256 hex encoded.
func Fingerprint(query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// classifyTimeout makes sure deadlines surface as transient upstream errors.
// Errors that already carry a kind, and cancellations, pass through unchanged.
func classifyTimeout(provider, op string, err error) error {
	if _, ok := domain.KindOf(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewUpstreamError(domain.KindTransient, provider, op, err)
	}
	return err
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
