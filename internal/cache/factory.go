package cache

import (
	"log/slog"
	"time"
)

// Config holds the complete cache configuration.
type Config struct {
	MaxSize                int           `yaml:"max_size"`                 // Entries per store (default: 1000)
	TTL                    time.Duration `yaml:"ttl"`                      // Response TTL (default: 1 hour)
	EmbeddingTTLMultiplier int           `yaml:"embedding_ttl_multiplier"` // Embedding TTL = TTL * multiplier (default: 24)
	EmbeddingMaxSize       int           `yaml:"embedding_max_size"`       // Defaults to MaxSize
	Namespace              string        `yaml:"namespace"`                // Key namespace prefix
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxSize:                1000,
		TTL:                    time.Hour,
		EmbeddingTTLMultiplier: 24,
		Namespace:              "llmgate",
	}
}

// EmbeddingTTL returns the lifetime of embedding entries.
func (c Config) EmbeddingTTL() time.Duration {
	multiplier := c.EmbeddingTTLMultiplier
	if multiplier <= 0 {
		multiplier = DefaultConfig().EmbeddingTTLMultiplier
	}
	return c.TTL * time.Duration(multiplier)
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.MaxSize <= 0 {
		c.MaxSize = defaults.MaxSize
	}
	if c.TTL <= 0 {
		c.TTL = defaults.TTL
	}
	if c.EmbeddingTTLMultiplier <= 0 {
		c.EmbeddingTTLMultiplier = defaults.EmbeddingTTLMultiplier
	}
	if c.EmbeddingMaxSize <= 0 {
		c.EmbeddingMaxSize = c.MaxSize
	}
	return c
}

// New creates the response and embedding stores described by cfg.
func New(cfg Config, logger *slog.Logger) *AICache {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	c := &AICache{
		responses: NewMemoryStore[Response](StoreResponses, MemoryStoreConfig{
			MaxSize: cfg.MaxSize,
			TTL:     cfg.TTL,
		}),
		embeddings: NewMemoryStore[Embedding](StoreEmbeddings, MemoryStoreConfig{
			MaxSize: cfg.EmbeddingMaxSize,
			TTL:     cfg.EmbeddingTTL(),
		}),
		logger: logger,
	}

	logger.Info("ai cache initialized",
		"max_size", cfg.MaxSize,
		"response_ttl", cfg.TTL,
		"embedding_max_size", cfg.EmbeddingMaxSize,
		"embedding_ttl", cfg.EmbeddingTTL(),
	)
	return c
}
