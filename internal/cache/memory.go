package cache

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/blueberrycongee/llmgate/internal/metrics"
)

// MemoryStore is a bounded in-memory store with LRU + TTL eviction.
// Reads refresh recency; TTL counts from the last write. An expired entry
// reads as a miss whether or not it has been purged yet.
type MemoryStore[V any] struct {
	name    string
	lru     *expirable.LRU[string, V]
	maxSize atomic.Int64
	ttl     time.Duration

	// Statistics
	hits   atomic.Int64
	misses atomic.Int64
}

// MemoryStoreConfig holds configuration for a MemoryStore.
type MemoryStoreConfig struct {
	MaxSize int           // Maximum number of entries (default: 1000)
	TTL     time.Duration // Entry lifetime (default: 1 hour)
}

// DefaultMemoryStoreConfig returns sensible defaults.
func DefaultMemoryStoreConfig() MemoryStoreConfig {
	return MemoryStoreConfig{
		MaxSize: 1000,
		TTL:     time.Hour,
	}
}

// NewMemoryStore creates a store. name labels its metrics.
func NewMemoryStore[V any](name string, cfg MemoryStoreConfig) *MemoryStore[V] {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1000
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}

	s := &MemoryStore[V]{
		name: name,
		ttl:  cfg.TTL,
	}
	s.maxSize.Store(int64(cfg.MaxSize))
	s.lru = expirable.NewLRU[string, V](cfg.MaxSize, nil, cfg.TTL)
	return s
}

// Get returns the value for key and refreshes its recency.
func (s *MemoryStore[V]) Get(key string) (V, bool) {
	value, ok := s.lru.Get(key)
	if !ok {
		s.misses.Add(1)
		metrics.CacheMisses.WithLabelValues(s.name).Inc()
		return value, false
	}
	s.hits.Add(1)
	metrics.CacheHits.WithLabelValues(s.name).Inc()
	return value, true
}

// Set inserts or overwrites key, evicting the least recently used entry
// when the store is full.
func (s *MemoryStore[V]) Set(key string, value V) {
	if s.lru.Add(key, value) {
		metrics.CacheEvictions.WithLabelValues(s.name).Inc()
	}
	metrics.CacheWrites.WithLabelValues(s.name).Inc()
	metrics.CacheSize.WithLabelValues(s.name).Set(float64(s.lru.Len()))
}

// Flush removes all entries. Hit and miss counters are kept.
func (s *MemoryStore[V]) Flush() {
	s.lru.Purge()
	metrics.CacheSize.WithLabelValues(s.name).Set(0)
}

// Resize changes the capacity, evicting least recently used entries if the
// store shrinks. It returns the number evicted.
func (s *MemoryStore[V]) Resize(maxSize int) int {
	if maxSize <= 0 {
		return 0
	}
	s.maxSize.Store(int64(maxSize))
	evicted := s.lru.Resize(maxSize)
	if evicted > 0 {
		metrics.CacheEvictions.WithLabelValues(s.name).Add(float64(evicted))
	}
	metrics.CacheSize.WithLabelValues(s.name).Set(float64(s.lru.Len()))
	return evicted
}

// Len returns the number of entries held, including expired entries that
// have not been purged yet.
func (s *MemoryStore[V]) Len() int {
	return s.lru.Len()
}

// TTL returns the entry lifetime.
func (s *MemoryStore[V]) TTL() time.Duration {
	return s.ttl
}

// Stats returns store statistics.
func (s *MemoryStore[V]) Stats() StoreStats {
	return StoreStats{
		Size:    s.lru.Len(),
		MaxSize: int(s.maxSize.Load()),
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
	}
}
