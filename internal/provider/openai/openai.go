// Package openai implements the provider adapter for OpenAI and any
// OpenAI-compatible endpoint.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/llmgate/internal/httputil"
	"github.com/blueberrycongee/llmgate/internal/metrics"
	"github.com/blueberrycongee/llmgate/internal/provider"
	llmerrors "github.com/blueberrycongee/llmgate/pkg/errors"
	"github.com/blueberrycongee/llmgate/pkg/types"
)

const (
	// ProviderName is the identifier for this provider.
	ProviderName = "openai"

	// DefaultBaseURL is the default OpenAI API endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultTimeout bounds a single upstream call.
	DefaultTimeout = 120 * time.Second

	// maxErrorBody caps how much of an error body is read.
	maxErrorBody = 64 << 10
)

// Provider implements provider.Provider for the OpenAI API.
type Provider struct {
	name    string
	baseURL string
	creds   provider.TokenSource
	headers map[string]string
	client  *http.Client
}

var _ provider.Provider = (*Provider)(nil)

// New creates a new OpenAI provider instance.
func New(cfg provider.Config) (*Provider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("openai: base url %q must use http or https", baseURL)
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	name := cfg.Name
	if name == "" {
		name = ProviderName
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Provider{
		name:    name,
		baseURL: baseURL,
		creds:   cfg.Credentials(),
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// ChatCompletion sends req to /chat/completions.
func (p *Provider) ChatCompletion(ctx context.Context, req *types.ChatRequest) (*types.ChatResponse, error) {
	httpReq, err := p.BuildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := p.do(httpReq, "chat", req.Model)
	if err != nil {
		return nil, err
	}
	defer httputil.DrainAndClose(resp.Body)

	chatResp, err := p.ParseResponse(resp)
	if err != nil {
		return nil, llmerrors.NewInternalError(p.name, req.Model, err.Error())
	}
	if chatResp.Usage != nil {
		metrics.RecordTokens(p.name, req.Model, chatResp.Usage.TotalTokens)
	}
	return chatResp, nil
}

// Embedding sends req to /embeddings.
func (p *Provider) Embedding(ctx context.Context, req *types.EmbeddingRequest) (*types.EmbeddingResponse, error) {
	httpReq, err := p.BuildEmbeddingRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := p.do(httpReq, "embedding", req.Model)
	if err != nil {
		return nil, err
	}
	defer httputil.DrainAndClose(resp.Body)

	embResp, err := p.ParseEmbeddingResponse(resp)
	if err != nil {
		return nil, llmerrors.NewInternalError(p.name, req.Model, err.Error())
	}
	metrics.RecordTokens(p.name, req.Model, embResp.Usage.TotalTokens)
	return embResp, nil
}

// Ping lists models to check that the endpoint is reachable and the
// credentials are accepted. It spends no tokens.
func (p *Provider) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if err := p.authorize(httpReq); err != nil {
		return err
	}

	resp, err := p.do(httpReq, "ping", "")
	if err != nil {
		return err
	}
	httputil.DrainAndClose(resp.Body)
	return nil
}

// BuildRequest creates an HTTP request for the chat completions endpoint.
func (p *Provider) BuildRequest(ctx context.Context, req *types.ChatRequest) (*http.Request, error) {
	return p.newRequest(ctx, "/chat/completions", req)
}

// BuildEmbeddingRequest creates an HTTP request for the embeddings endpoint.
func (p *Provider) BuildEmbeddingRequest(ctx context.Context, req *types.EmbeddingRequest) (*http.Request, error) {
	return p.newRequest(ctx, "/embeddings", req)
}

func (p *Provider) newRequest(ctx context.Context, path string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if err := p.authorize(httpReq); err != nil {
		return nil, err
	}
	return httpReq, nil
}

func (p *Provider) authorize(httpReq *http.Request) error {
	token, err := p.creds.Token()
	if err != nil {
		return fmt.Errorf("resolve credentials: %w", err)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range p.headers {
		httpReq.Header.Set(k, v)
	}
	return nil
}

// do sends httpReq and converts transport failures and non-2xx statuses to
// LLMErrors. The caller closes the body of a successful response.
func (p *Provider) do(httpReq *http.Request, operation, model string) (*http.Response, error) {
	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		metrics.RecordProviderCall(p.name, operation, 0, time.Since(start))
		if ctxErr := httpReq.Context().Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s request: %w", operation, ctxErr)
		}
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, llmerrors.NewTimeoutError(p.name, model, err.Error())
		}
		return nil, llmerrors.NewServiceUnavailableError(p.name, model, err.Error())
	}
	metrics.RecordProviderCall(p.name, operation, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer httputil.DrainAndClose(resp.Body)
		body, _ := httputil.ReadLimitedBody(resp.Body, maxErrorBody)
		mapped := p.MapError(resp.StatusCode, body)
		mapped.Model = model
		return nil, mapped
	}
	return resp, nil
}

// ParseResponse decodes a chat completion response.
func (p *Provider) ParseResponse(resp *http.Response) (*types.ChatResponse, error) {
	var chatResp types.ChatResponse
	if err := httputil.DecodeJSON(resp.Body, httputil.DefaultMaxResponseBodyBytes, &chatResp); err != nil {
		return nil, err
	}
	return &chatResp, nil
}

// ParseEmbeddingResponse decodes an embeddings response. Entries are
// returned ordered by index; every index must appear exactly once with a
// non-empty vector.
func (p *Provider) ParseEmbeddingResponse(resp *http.Response) (*types.EmbeddingResponse, error) {
	var embResp types.EmbeddingResponse
	if err := httputil.DecodeJSON(resp.Body, httputil.MaxEmbeddingBodyBytes, &embResp); err != nil {
		return nil, err
	}

	ordered := make([]types.EmbeddingObject, len(embResp.Data))
	seen := make([]bool, len(embResp.Data))
	for _, obj := range embResp.Data {
		if obj.Index < 0 || obj.Index >= len(ordered) {
			return nil, fmt.Errorf("embedding index %d out of range", obj.Index)
		}
		if seen[obj.Index] {
			return nil, fmt.Errorf("duplicate embedding index %d", obj.Index)
		}
		if len(obj.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", obj.Index)
		}
		seen[obj.Index] = true
		ordered[obj.Index] = obj
	}
	embResp.Data = ordered
	return &embResp, nil
}

// MapError converts an OpenAI error response to a standardized error.
func (p *Provider) MapError(statusCode int, body []byte) *llmerrors.LLMError {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    any    `json:"code"`
		} `json:"error"`
	}

	message := "unknown error"
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	mapped := llmerrors.FromStatus(statusCode, p.name, "", message)
	if statusCode == http.StatusBadRequest && errResp.Error.Code == "context_length_exceeded" {
		mapped.Type = llmerrors.TypeContextLength
	}
	return mapped
}
