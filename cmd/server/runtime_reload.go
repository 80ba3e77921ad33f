package main

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/blueberrycongee/llmgate/internal/cache"
	"github.com/blueberrycongee/llmgate/internal/config"
	"github.com/blueberrycongee/llmgate/internal/scheduler"
)

type limitSetter interface {
	SetLimits(maxConcurrent, maxPerWindow int) error
}

type cacheResizer interface {
	Resize(responseMaxSize, embeddingMaxSize int)
}

// runtimeReloader applies the settings that can change without a restart.
// Window length, TTLs and provider settings are read once at startup.
// Reloads are applied one at a time in call order.
type runtimeReloader struct {
	logger  *slog.Logger
	limits  limitSetter
	cache   cacheResizer
	current atomic.Pointer[config.Config]
	mu      sync.Mutex
}

func newRuntimeReloader(logger *slog.Logger, limits limitSetter, cache cacheResizer, initial *config.Config) *runtimeReloader {
	if logger == nil {
		logger = slog.Default()
	}
	r := &runtimeReloader{
		logger: logger,
		limits: limits,
		cache:  cache,
	}
	r.current.Store(initial)
	return r
}

func (r *runtimeReloader) Reload(cfg *config.Config) {
	if cfg == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	// Zero means default, as at startup.
	defaults := scheduler.DefaultConfig()
	maxConcurrent := cfg.Scheduler.MaxConcurrentRequests
	if maxConcurrent == 0 {
		maxConcurrent = defaults.MaxConcurrentRequests
	}
	maxPerWindow := cfg.Scheduler.MaxRequestsPerMinute
	if maxPerWindow == 0 {
		maxPerWindow = defaults.MaxRequestsPerMinute
	}
	if err := r.limits.SetLimits(maxConcurrent, maxPerWindow); err != nil {
		r.logger.Error("failed to apply scheduler limits", "error", err)
		return
	}

	maxSize := cfg.Cache.MaxSize
	if maxSize == 0 {
		maxSize = cache.DefaultConfig().MaxSize
	}
	embeddingMax := cfg.Cache.EmbeddingMaxSize
	if embeddingMax == 0 {
		embeddingMax = maxSize
	}
	r.cache.Resize(maxSize, embeddingMax)

	if prev := r.current.Swap(cfg); prev != nil {
		r.warnRestartRequired(prev, cfg)
	}
}

func (r *runtimeReloader) warnRestartRequired(prev, next *config.Config) {
	var changed []string
	if prev.Scheduler.Window != next.Scheduler.Window {
		changed = append(changed, "scheduler.window")
	}
	if prev.Cache.TTL != next.Cache.TTL || prev.Cache.EmbeddingTTLMultiplier != next.Cache.EmbeddingTTLMultiplier {
		changed = append(changed, "cache.ttl")
	}
	if prev.Provider.BaseURL != next.Provider.BaseURL || prev.Provider.APIKey != next.Provider.APIKey {
		changed = append(changed, "provider")
	}
	if prev.Server != next.Server {
		changed = append(changed, "server")
	}
	if len(changed) > 0 {
		r.logger.Warn("config changes require a restart to take effect", "fields", changed)
	}
}
