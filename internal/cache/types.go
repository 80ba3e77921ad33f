// Package cache keeps provider results in memory so identical inputs do not
// trigger repeat provider calls. Generated text and embedding vectors live in
// separate stores with independent capacity and TTL.
package cache

import "time"

// Store names, also used as metric labels.
const (
	StoreResponses  = "responses"
	StoreEmbeddings = "embeddings"
)

// Response is a cached generated-text result.
type Response struct {
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"` // Caller-defined, e.g. model and usage
}

// Embedding is a cached embedding vector.
type Embedding struct {
	Vector    []float64 `json:"vector"`
	Timestamp time.Time `json:"timestamp"`
}

// StoreStats holds statistics for a single store. Hits and Misses are
// cumulative since construction.
type StoreStats struct {
	Size    int   `json:"size"`
	MaxSize int   `json:"max_size"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// Stats holds statistics for both stores.
type Stats struct {
	Responses  StoreStats `json:"responses"`
	Embeddings StoreStats `json:"embeddings"`
}

// KeyGenerator defines the interface for generating cache keys.
type KeyGenerator interface {
	// Generate creates a cache key from completion parameters.
	Generate(params KeyParams) string

	// EmbeddingKey creates a cache key for one embedding input.
	EmbeddingKey(model, input string) string
}

// KeyParams contains the parameters used to generate a cache key.
type KeyParams struct {
	Model       string            `json:"model"`
	Messages    []byte            `json:"messages"`    // Serialized messages
	Temperature *float64          `json:"temperature"` // nil means not set
	MaxTokens   int               `json:"max_tokens"`
	TopP        *float64          `json:"top_p"`
	Namespace   string            `json:"namespace,omitempty"`
	Extra       map[string][]byte `json:"extra,omitempty"` // Provider-specific params
}
