// Package config loads sercha-recall configuration from defaults, an optional
// YAML file and RECALL_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
)

// EnvPrefix prefixes every environment override, e.g. RECALL_SERVER_PORT
const EnvPrefix = "RECALL"

// Config is the top-level configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Profile   ProfileConfig   `mapstructure:"profile"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Query     QueryConfig     `mapstructure:"query"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ProfileConfig locates the profile answered over.
type ProfileConfig struct {
	Path string `mapstructure:"path"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider       string        `mapstructure:"provider"`
	Model          string        `mapstructure:"model"`
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	BatchSize      int           `mapstructure:"batch_size"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
}

// LLMConfig selects and tunes the generation provider.
type LLMConfig struct {
	Provider     string        `mapstructure:"provider"`
	Model        string        `mapstructure:"model"`
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Temperature  float64       `mapstructure:"temperature"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	SystemPrompt string        `mapstructure:"system_prompt"`
}

// RetrievalConfig tunes ranking and quality scoring.
type RetrievalConfig struct {
	TopK               int     `mapstructure:"top_k"`
	CoverageCeiling    int     `mapstructure:"coverage_ceiling"`
	GroundednessWeight float64 `mapstructure:"groundedness_weight"`
	CoverageWeight     float64 `mapstructure:"coverage_weight"`
}

// CacheConfig tunes the semantic cache.
type CacheConfig struct {
	Capacity      int           `mapstructure:"capacity"`
	TTL           time.Duration `mapstructure:"ttl"`
	Threshold     float64       `mapstructure:"threshold"`
	PruneInterval time.Duration `mapstructure:"prune_interval"`
}

// QueryConfig bounds incoming questions.
type QueryConfig struct {
	MaxLength int `mapstructure:"max_length"`
}

// RateLimitConfig sets the per-client request budget.
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// RedisConfig points at the shared rate limit store. Empty URL means in-process limiting.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// PostgresConfig points at the query log database. Empty URL disables the query log.
type PostgresConfig struct {
	URL string `mapstructure:"url"`
}

// providerKeyEnv names the conventional API key variable per provider,
// read when no RECALL_ key is set.
var providerKeyEnv = map[domain.AIProvider]string{
	domain.AIProviderOpenAI:    "OPENAI_API_KEY",
	domain.AIProviderAnthropic: "ANTHROPIC_API_KEY",
	domain.AIProviderGroq:      "GROQ_API_KEY",
}

func setDefaults(v *viper.Viper) {
	retrieval := domain.DefaultRetrievalSettings()
	cache := domain.DefaultCacheSettings()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("profile.path", "data/profile.yaml")

	v.SetDefault("embedding.provider", string(domain.AIProviderOpenAI))
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.batch_size", 64)
	v.SetDefault("embedding.max_retries", 2)
	v.SetDefault("embedding.retry_base_delay", 500*time.Millisecond)

	v.SetDefault("llm.provider", string(domain.AIProviderOpenAI))
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 1000)
	v.SetDefault("llm.system_prompt", "")

	v.SetDefault("retrieval.top_k", retrieval.TopK)
	v.SetDefault("retrieval.coverage_ceiling", retrieval.CoverageCeiling)
	v.SetDefault("retrieval.groundedness_weight", retrieval.GroundednessWeight)
	v.SetDefault("retrieval.coverage_weight", retrieval.CoverageWeight)

	v.SetDefault("cache.capacity", cache.Capacity)
	v.SetDefault("cache.ttl", cache.TTL)
	v.SetDefault("cache.threshold", cache.Threshold)
	v.SetDefault("cache.prune_interval", cache.PruneInterval)

	v.SetDefault("query.max_length", 300)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 30)
	v.SetDefault("rate_limit.window", time.Minute)

	v.SetDefault("redis.url", "")
	v.SetDefault("postgres.url", "")
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix RECALL_).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Environment
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// File
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.applyProviderKeys()

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// applyProviderKeys fills empty API keys from the provider's conventional variable
func (c *Config) applyProviderKeys() {
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = os.Getenv(providerKeyEnv[domain.AIProvider(c.Embedding.Provider)])
	}
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv(providerKeyEnv[domain.AIProvider(c.LLM.Provider)])
	}
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateLog()...)
	errs = append(errs, c.validateProviders()...)
	errs = append(errs, c.validateRetrieval()...)
	errs = append(errs, c.validateCache()...)

	if c.Query.MaxLength <= 0 {
		errs = append(errs, fmt.Errorf("config: query.max_length must be positive, got %d", c.Query.MaxLength))
	}
	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		errs = append(errs, fmt.Errorf("config: rate_limit.requests and rate_limit.window must be positive when enabled"))
	}

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("config: server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	return errs
}

func (c *Config) validateLog() []error {
	var errs []error
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("config: log.level: %w", err))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: log.format must be one of [text, json], got %q", c.Log.Format))
	}
	return errs
}

func (c *Config) validateProviders() []error {
	var errs []error

	emb := domain.AIProvider(c.Embedding.Provider)
	if !emb.SupportsEmbedding() {
		errs = append(errs, fmt.Errorf("config: embedding.provider must be one of [openai, ollama, local], got %q", c.Embedding.Provider))
	}
	if c.Embedding.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("config: embedding.batch_size must be positive, got %d", c.Embedding.BatchSize))
	}

	llm := domain.AIProvider(c.LLM.Provider)
	if !llm.SupportsGeneration() {
		errs = append(errs, fmt.Errorf("config: llm.provider must be one of [openai, groq, anthropic, ollama], got %q", c.LLM.Provider))
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("config: llm.timeout must be positive, got %s", c.LLM.Timeout))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("config: llm.temperature must be between 0 and 2, got %g", c.LLM.Temperature))
	}

	return errs
}

func (c *Config) validateRetrieval() []error {
	var errs []error
	r := c.Retrieval
	if r.TopK <= 0 {
		errs = append(errs, fmt.Errorf("config: retrieval.top_k must be positive, got %d", r.TopK))
	}
	if r.CoverageCeiling <= 0 {
		errs = append(errs, fmt.Errorf("config: retrieval.coverage_ceiling must be positive, got %d", r.CoverageCeiling))
	}
	if r.GroundednessWeight < 0 || r.CoverageWeight < 0 {
		errs = append(errs, fmt.Errorf("config: retrieval weights must not be negative"))
	}
	return errs
}

func (c *Config) validateCache() []error {
	var errs []error
	if c.Cache.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("config: cache.capacity must be positive, got %d", c.Cache.Capacity))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, fmt.Errorf("config: cache.ttl must be positive, got %s", c.Cache.TTL))
	}
	if c.Cache.Threshold <= 0 || c.Cache.Threshold > 1 {
		errs = append(errs, fmt.Errorf("config: cache.threshold must be in (0, 1], got %g", c.Cache.Threshold))
	}
	if c.Cache.PruneInterval <= 0 {
		errs = append(errs, fmt.Errorf("config: cache.prune_interval must be positive, got %s", c.Cache.PruneInterval))
	}
	return errs
}

// EmbeddingSettings returns the embedding provider settings
func (c *Config) EmbeddingSettings() *domain.EmbeddingSettings {
	return &domain.EmbeddingSettings{
		Provider: domain.AIProvider(c.Embedding.Provider),
		Model:    c.Embedding.Model,
		APIKey:   c.Embedding.APIKey,
		BaseURL:  c.Embedding.BaseURL,
	}
}

// LLMSettings returns the generation provider settings
func (c *Config) LLMSettings() *domain.LLMSettings {
	return &domain.LLMSettings{
		Provider: domain.AIProvider(c.LLM.Provider),
		Model:    c.LLM.Model,
		APIKey:   c.LLM.APIKey,
		BaseURL:  c.LLM.BaseURL,
		Timeout:  c.LLM.Timeout,
	}
}

// RetrievalSettings returns ranking and scoring settings
func (c *Config) RetrievalSettings() domain.RetrievalSettings {
	return domain.RetrievalSettings{
		TopK:               c.Retrieval.TopK,
		CoverageCeiling:    c.Retrieval.CoverageCeiling,
		GroundednessWeight: c.Retrieval.GroundednessWeight,
		CoverageWeight:     c.Retrieval.CoverageWeight,
	}
}

// CacheSettings returns semantic cache settings
func (c *Config) CacheSettings() domain.CacheSettings {
	return domain.CacheSettings{
		Capacity:      c.Cache.Capacity,
		TTL:           c.Cache.TTL,
		Threshold:     c.Cache.Threshold,
		PruneInterval: c.Cache.PruneInterval,
	}
}

// ParseLevel maps a level name onto slog.Level
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown level %q", s)
	}
	return level, nil
}

// NewLogger builds the process logger described by the log section
func (c *Config) NewLogger() *slog.Logger {
	level, _ := ParseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
