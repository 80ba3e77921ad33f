// Package provider defines the interface the gateway uses to reach an
// upstream model API.
package provider

import (
	"context"
	"time"

	"github.com/blueberrycongee/llmgate/pkg/types"
)

// Provider sends completion and embedding requests upstream. Failures are
// returned as *errors.LLMError from pkg/errors.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai").
	Name() string

	// ChatCompletion performs a non-streaming chat completion.
	ChatCompletion(ctx context.Context, req *types.ChatRequest) (*types.ChatResponse, error)

	// Embedding computes embeddings for every input in req.
	Embedding(ctx context.Context, req *types.EmbeddingRequest) (*types.EmbeddingResponse, error)
}

// TokenSource supplies the bearer credential for each upstream call.
type TokenSource interface {
	Token() (string, error)
}

// StaticTokenSource implements TokenSource with a fixed API key.
type StaticTokenSource string

// Token returns the key.
func (s StaticTokenSource) Token() (string, error) {
	return string(s), nil
}

// Config contains provider connection settings.
type Config struct {
	Name        string            `yaml:"name"`
	BaseURL     string            `yaml:"base_url"`
	APIKey      string            `yaml:"api_key"` // Never logged
	TokenSource TokenSource       `yaml:"-"`       // Overrides APIKey when set
	Timeout     time.Duration     `yaml:"timeout"`
	Headers     map[string]string `yaml:"headers"`
}

// Credentials returns the configured TokenSource, falling back to APIKey.
func (c Config) Credentials() TokenSource {
	if c.TokenSource != nil {
		return c.TokenSource
	}
	return StaticTokenSource(c.APIKey)
}
