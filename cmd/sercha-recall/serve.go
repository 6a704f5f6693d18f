package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpserver "github.com/custodia-labs/sercha-recall/internal/adapters/driving/http"
	"github.com/custodia-labs/sercha-recall/internal/core/services"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  "Load configuration, connect the configured backends, warm the index and serve the query API until interrupted.",
		RunE:  runServe,
	}

	cmd.Flags().Int("port", 0, "override server.port")
	cmd.Flags().Bool("verify", false, "health check the AI providers before serving")
	cmd.Flags().Bool("warm", true, "build the index in the background at startup")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}
	verify, _ := cmd.Flags().GetBool("verify")
	warm, _ := cmd.Flags().GetBool("warm")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, appOptions{verifyProviders: verify})
	if err != nil {
		return err
	}
	defer a.Close()

	pruner := services.NewPruner(services.PrunerConfig{
		Cache:    a.cache,
		Logger:   a.logger,
		Interval: cfg.Cache.PruneInterval,
	})
	if err := pruner.Start(ctx); err != nil {
		return fmt.Errorf("starting pruner: %w", err)
	}
	defer pruner.Stop()

	if warm && a.runtime.EmbeddingAvailable() {
		go a.warm(ctx)
	}

	server := httpserver.NewServer(httpserver.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        version,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
	}, httpserver.Deps{
		QueryService: a.query,
		IndexService: a.indexer,
		Runtime:      a.runtime,
		RateLimiter:  a.limiter,
		Checks:       a.checks,
		Logger:       a.logger,
	})

	a.logger.Info("sercha-recall ready",
		"version", version,
		"addr", server.Addr(),
		"rate_limit", a.runtime.RateLimitBackend,
		"query_log", a.runtime.QueryLogBackend,
		"can_answer", a.runtime.CanAnswer(),
	)

	return server.Start(ctx)
}

func (a *app) warm(ctx context.Context) {
	status, err := a.indexer.Warm(ctx)
	if err != nil {
		a.logger.Warn("index warm-up failed, next query will retry", "error", err)
		return
	}
	a.logger.Info("index warmed", "chunks", status.Chunks, "dimensions", status.Dimensions, "model", status.Model)
}
