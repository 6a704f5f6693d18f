package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-recall/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-recall/internal/adapters/driven/memory"
	"github.com/custodia-labs/sercha-recall/internal/adapters/driven/postgres"
	"github.com/custodia-labs/sercha-recall/internal/adapters/driven/profile"
	redisadapter "github.com/custodia-labs/sercha-recall/internal/adapters/driven/redis"
	httpserver "github.com/custodia-labs/sercha-recall/internal/adapters/driving/http"
	"github.com/custodia-labs/sercha-recall/internal/config"
	"github.com/custodia-labs/sercha-recall/internal/core/domain"
	"github.com/custodia-labs/sercha-recall/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-recall/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-recall/internal/core/services"
	"github.com/custodia-labs/sercha-recall/internal/runtime"
)

// app holds the wired object graph shared by the commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	runtime *domain.RuntimeConfig

	services *runtime.Services
	indexer  *services.Indexer
	cache    *services.SemanticCache
	query    driving.QueryService

	limiter driven.RateLimiter // nil when rate limiting is disabled
	checks  map[string]httpserver.Pinger

	closers []func() error
}

type appOptions struct {
	verifyProviders bool // health check providers before installing them
}

// newApp connects every configured backend and builds the services.
// On error everything opened so far is closed.
func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (_ *app, err error) {
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	a := &app{
		cfg:    cfg,
		logger: logger,
		checks: make(map[string]httpserver.Pinger),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	prof, err := profile.NewFileSource(cfg.Profile.Path).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	chunks := prof.Chunks()
	logger.Info("profile loaded", "path", cfg.Profile.Path, "owner", prof.Owner, "chunks", len(chunks))

	rateLimitBackend, err := a.wireRateLimiter(ctx)
	if err != nil {
		return nil, err
	}
	queryLog, queryLogBackend, err := a.wireQueryLog(ctx)
	if err != nil {
		return nil, err
	}

	a.runtime = domain.NewRuntimeConfig(rateLimitBackend, queryLogBackend)
	a.services = runtime.NewServices(a.runtime)
	a.closers = append(a.closers, a.services.Close)

	if err := a.wireProviders(ctx, opts.verifyProviders); err != nil {
		return nil, err
	}

	prompts := services.NewPromptBuilder(prof.Owner, prof.Role)
	prompts.Temperature = cfg.LLM.Temperature
	prompts.MaxTokens = cfg.LLM.MaxTokens
	if cfg.LLM.SystemPrompt != "" {
		prompts.System = cfg.LLM.SystemPrompt
	}

	a.cache = services.NewSemanticCache(cfg.Cache.Capacity, cfg.Cache.TTL)
	a.indexer = services.NewIndexer(services.IndexerConfig{
		Chunks:    chunks,
		Services:  a.services,
		BatchSize: cfg.Embedding.BatchSize,
		Logger:    logger,
	})
	a.query = services.NewQueryService(services.QueryServiceConfig{
		Services:          a.services,
		Indexer:           a.indexer,
		Cache:             a.cache,
		Scorer:            services.NewQualityScorer(cfg.RetrievalSettings()),
		Prompts:           prompts,
		QueryLog:          queryLog,
		Logger:            logger,
		TopK:              cfg.Retrieval.TopK,
		Threshold:         cfg.Cache.Threshold,
		MaxQueryLength:    cfg.Query.MaxLength,
		GenerationTimeout: cfg.LLM.Timeout,
	})

	return a, nil
}

// wireRateLimiter picks Redis when configured, otherwise an in-process limiter
func (a *app) wireRateLimiter(ctx context.Context) (string, error) {
	rl := a.cfg.RateLimit
	if !rl.Enabled {
		return "disabled", nil
	}

	if a.cfg.Redis.URL == "" {
		a.limiter = memory.NewRateLimiter(rl.Requests, rl.Window)
		return "memory", nil
	}

	opts, err := redis.ParseURL(a.cfg.Redis.URL)
	if err != nil {
		return "", fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	a.closers = append(a.closers, client.Close)

	if err := client.Ping(ctx).Err(); err != nil {
		return "", fmt.Errorf("connecting to redis: %w", err)
	}

	limiter := redisadapter.NewRateLimiter(client, rl.Requests, rl.Window)
	a.limiter = limiter
	a.checks["redis"] = limiter
	a.logger.Info("redis connected", "addr", opts.Addr)
	return "redis", nil
}

// wireQueryLog connects Postgres when configured; no URL means no query log
func (a *app) wireQueryLog(ctx context.Context) (driven.QueryLogStore, string, error) {
	if a.cfg.Postgres.URL == "" {
		return nil, "none", nil
	}

	db, err := postgres.Connect(ctx, postgres.DefaultConfig(a.cfg.Postgres.URL))
	if err != nil {
		return nil, "", fmt.Errorf("connecting to postgres: %w", err)
	}
	a.closers = append(a.closers, db.Close)

	if err := db.InitSchema(ctx); err != nil {
		return nil, "", fmt.Errorf("initializing schema: %w", err)
	}

	a.checks["postgres"] = db
	a.logger.Info("postgres connected, query log enabled")
	return postgres.NewQueryLogStore(db), "postgres", nil
}

// wireProviders creates the embedding and generation services from config.
// Unconfigured providers are left unset and reported by /ready.
func (a *app) wireProviders(ctx context.Context, verify bool) error {
	var factory driven.AIServiceFactory = ai.NewFactory(ai.RetryConfig{
		MaxRetries: a.cfg.Embedding.MaxRetries,
		BaseDelay:  a.cfg.Embedding.RetryBaseDelay,
		Logger:     a.logger,
	})

	emb, err := factory.CreateEmbeddingService(a.cfg.EmbeddingSettings())
	if err != nil {
		return fmt.Errorf("creating embedding service: %w", err)
	}
	llm, err := factory.CreateLLMService(a.cfg.LLMSettings())
	if err != nil {
		if emb != nil {
			_ = emb.Close()
		}
		return fmt.Errorf("creating llm service: %w", err)
	}

	if verify {
		if err := a.services.ValidateAndSetEmbedding(ctx, emb); err != nil {
			if llm != nil {
				_ = llm.Close()
			}
			return fmt.Errorf("embedding provider health check: %w", err)
		}
		if err := a.services.ValidateAndSetLLM(ctx, llm); err != nil {
			return fmt.Errorf("llm provider health check: %w", err)
		}
	} else {
		a.services.SetEmbeddingService(emb)
		a.services.SetLLMService(llm)
	}

	if emb == nil {
		a.logger.Warn("embedding provider not configured", "provider", a.cfg.Embedding.Provider)
	}
	if llm == nil {
		a.logger.Warn("llm provider not configured", "provider", a.cfg.LLM.Provider)
	}
	return nil
}

// Close releases backends in reverse order of acquisition
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
