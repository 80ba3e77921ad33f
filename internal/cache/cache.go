package cache

import (
	"log/slog"
	"maps"
	"slices"
	"time"
)

// AICache fronts provider calls with two stores: short-lived generated
// responses and long-lived embeddings. It is safe for concurrent use.
// A miss is never an error; callers recompute and store the result.
type AICache struct {
	responses  *MemoryStore[Response]
	embeddings *MemoryStore[Embedding]
	logger     *slog.Logger
}

// GetCachedResponse returns the cached content for key, if present and
// unexpired.
func (c *AICache) GetCachedResponse(key string) (string, bool) {
	entry, ok := c.responses.Get(key)
	if !ok {
		return "", false
	}
	return entry.Content, true
}

// GetCachedResponseEntry is GetCachedResponse with timestamp and metadata.
func (c *AICache) GetCachedResponseEntry(key string) (Response, bool) {
	entry, ok := c.responses.Get(key)
	if !ok {
		return Response{}, false
	}
	entry.Metadata = maps.Clone(entry.Metadata)
	return entry, true
}

// CacheResponse stores content under key. metadata may be nil.
func (c *AICache) CacheResponse(key, content string, metadata map[string]any) {
	c.responses.Set(key, Response{
		Content:   content,
		Timestamp: time.Now(),
		Metadata:  maps.Clone(metadata),
	})
}

// GetCachedEmbedding returns a copy of the cached vector for key.
func (c *AICache) GetCachedEmbedding(key string) ([]float64, bool) {
	entry, ok := c.embeddings.Get(key)
	if !ok {
		return nil, false
	}
	return slices.Clone(entry.Vector), true
}

// CacheEmbedding stores a copy of vector under key.
func (c *AICache) CacheEmbedding(key string, vector []float64) {
	c.embeddings.Set(key, Embedding{
		Vector:    slices.Clone(vector),
		Timestamp: time.Now(),
	})
}

// ClearResponseCache empties the response store.
func (c *AICache) ClearResponseCache() {
	c.responses.Flush()
	c.logger.Info("response cache cleared")
}

// ClearEmbeddingCache empties the embedding store.
func (c *AICache) ClearEmbeddingCache() {
	c.embeddings.Flush()
	c.logger.Info("embedding cache cleared")
}

// ClearAll empties both stores.
func (c *AICache) ClearAll() {
	c.ClearResponseCache()
	c.ClearEmbeddingCache()
}

// Resize changes the capacity of both stores.
func (c *AICache) Resize(responseMaxSize, embeddingMaxSize int) {
	evicted := c.responses.Resize(responseMaxSize)
	evicted += c.embeddings.Resize(embeddingMaxSize)
	c.logger.Info("ai cache resized",
		"max_size", c.responses.Stats().MaxSize,
		"embedding_max_size", c.embeddings.Stats().MaxSize,
		"evicted", evicted,
	)
}

// Stats returns occupancy and cumulative hit/miss counts for both stores.
func (c *AICache) Stats() Stats {
	return Stats{
		Responses:  c.responses.Stats(),
		Embeddings: c.embeddings.Stats(),
	}
}
