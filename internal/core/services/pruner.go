package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Pruner periodically removes expired entries from the semantic cache.
// Lookups only hide expired entries; this is the only place they are dropped.
type Pruner struct {
	cache  *SemanticCache
	logger *slog.Logger

	// Internal state
	mu       sync.RWMutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	interval time.Duration
}

// PrunerConfig holds configuration for the pruner.
type PrunerConfig struct {
	Cache    *SemanticCache
	Logger   *slog.Logger
	Interval time.Duration // How often to prune (default: 1m)
}

// NewPruner creates a new pruner.
func NewPruner(cfg PrunerConfig) *Pruner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	return &Pruner{
		cache:    cfg.Cache,
		logger:   logger,
		interval: interval,
	}
}

// Start begins the prune loop.
// It runs until Stop is called or context is cancelled.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	p.logger.Info("cache pruner starting", "interval", p.interval, "ttl", p.cache.TTL())

	go p.run(ctx)

	return nil
}

// Stop gracefully stops the pruner.
func (p *Pruner) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	close(p.stopCh)
	p.mu.Unlock()

	<-p.doneCh

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	p.logger.Info("cache pruner stopped")
}

// IsRunning reports whether the prune loop is active
func (p *Pruner) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

func (p *Pruner) run(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("cache pruner context cancelled")
			p.mu.Lock()
			p.running = false
			p.mu.Unlock()
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.PruneOnce()
		}
	}
}

// PruneOnce drops expired entries now and returns how many were removed
func (p *Pruner) PruneOnce() int {
	removed := p.cache.Prune()
	if removed > 0 {
		p.logger.Debug("pruned expired cache entries", "removed", removed, "remaining", p.cache.Len())
	}
	return removed
}
