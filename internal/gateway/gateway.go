// Package gateway serves completion and embedding requests. It checks the
// cache first and sends misses through the admission scheduler to the
// upstream provider. Failures are never cached.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/blueberrycongee/llmgate/internal/cache"
	"github.com/blueberrycongee/llmgate/internal/provider"
	"github.com/blueberrycongee/llmgate/internal/scheduler"
	"github.com/blueberrycongee/llmgate/pkg/types"
)

// TracerName is the instrumentation scope used for gateway spans.
const TracerName = "github.com/blueberrycongee/llmgate/internal/gateway"

// Metadata keys stored alongside cached responses.
const (
	metaID           = "id"
	metaModel        = "model"
	metaFinishReason = "finish_reason"
	metaUsage        = "usage"
)

// Config wires a Gateway to its collaborators.
type Config struct {
	Cache     *cache.AICache
	Scheduler *scheduler.Scheduler
	Provider  provider.Provider
	Keys      cache.KeyGenerator // Optional, defaults to a SHA-256 generator
	Namespace string             // Optional key namespace
	Logger    *slog.Logger       // Optional, defaults to slog.Default()
	Tracer    trace.Tracer       // Optional, defaults to the global provider
}

// Gateway composes cache, scheduler and provider.
type Gateway struct {
	cache     *cache.AICache
	scheduler *scheduler.Scheduler
	provider  provider.Provider
	keys      cache.KeyGenerator
	namespace string
	logger    *slog.Logger
	tracer    trace.Tracer
}

// CompletionResult is the outcome of Complete.
type CompletionResult struct {
	Response *types.ChatResponse
	Cached   bool
}

// EmbeddingResult is the outcome of Embed. Cached is true only when every
// input was served from cache.
type EmbeddingResult struct {
	Response  *types.EmbeddingResponse
	Cached    bool
	CacheHits int
}

// New creates a gateway.
func New(cfg Config) (*Gateway, error) {
	if cfg.Cache == nil {
		return nil, errors.New("gateway: cache is required")
	}
	if cfg.Scheduler == nil {
		return nil, errors.New("gateway: scheduler is required")
	}
	if cfg.Provider == nil {
		return nil, errors.New("gateway: provider is required")
	}
	if cfg.Keys == nil {
		cfg.Keys = cache.NewKeyGenerator("llmgate")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(TracerName)
	}

	return &Gateway{
		cache:     cfg.Cache,
		scheduler: cfg.Scheduler,
		provider:  cfg.Provider,
		keys:      cfg.Keys,
		namespace: cfg.Namespace,
		logger:    cfg.Logger,
		tracer:    cfg.Tracer,
	}, nil
}

// Complete answers req from cache when possible, otherwise schedules a
// provider call at priority and caches a successful answer.
func (g *Gateway) Complete(ctx context.Context, req *types.ChatRequest, priority int) (*CompletionResult, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.complete",
		trace.WithAttributes(
			attribute.String("llmgate.model", req.Model),
			attribute.Int("llmgate.priority", priority),
		),
	)
	defer span.End()

	key, err := g.completionKey(req)
	if err != nil {
		return nil, fail(span, fmt.Errorf("build cache key: %w", err))
	}

	if entry, ok := g.cache.GetCachedResponseEntry(key); ok {
		span.SetAttributes(attribute.Bool("llmgate.cache_hit", true))
		return &CompletionResult{Response: responseFromCache(req.Model, entry), Cached: true}, nil
	}
	span.SetAttributes(attribute.Bool("llmgate.cache_hit", false))

	resp, err := scheduler.Do(g.scheduler, ctx, priority, func(ctx context.Context) (*types.ChatResponse, error) {
		return g.provider.ChatCompletion(ctx, req)
	})
	if err != nil {
		return nil, fail(span, err)
	}

	if cacheable(resp) {
		g.cache.CacheResponse(key, resp.Content(), responseMetadata(resp))
	}
	return &CompletionResult{Response: resp}, nil
}

// Embed answers each input from the embedding cache and sends the misses
// upstream in a single scheduled call. Output order matches input order.
func (g *Gateway) Embed(ctx context.Context, req *types.EmbeddingRequest, priority int) (*EmbeddingResult, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.embed",
		trace.WithAttributes(
			attribute.String("llmgate.model", req.Model),
			attribute.Int("llmgate.priority", priority),
		),
	)
	defer span.End()

	inputs := req.Input.Values()
	vectors := make([][]float64, len(inputs))
	keys := make([]string, len(inputs))
	var missing []int
	for i, input := range inputs {
		keys[i] = g.embeddingKey(req, input)
		if vector, ok := g.cache.GetCachedEmbedding(keys[i]); ok {
			vectors[i] = vector
			continue
		}
		missing = append(missing, i)
	}
	hits := len(inputs) - len(missing)
	span.SetAttributes(attribute.Int("llmgate.cache_hits", hits))

	result := &EmbeddingResult{CacheHits: hits, Cached: len(missing) == 0}
	usage := types.Usage{}

	if len(missing) > 0 {
		texts := make([]string, len(missing))
		for j, i := range missing {
			texts[j] = inputs[i]
		}
		upstream := *req
		upstream.Input = types.NewEmbeddingInputFromStrings(texts)

		resp, err := scheduler.Do(g.scheduler, ctx, priority, func(ctx context.Context) (*types.EmbeddingResponse, error) {
			return g.provider.Embedding(ctx, &upstream)
		})
		if err != nil {
			return nil, fail(span, err)
		}
		if len(resp.Data) != len(missing) {
			return nil, fail(span, fmt.Errorf("provider returned %d embeddings for %d inputs", len(resp.Data), len(missing)))
		}

		for j := range missing {
			if len(resp.Data[j].Embedding) == 0 {
				return nil, fail(span, fmt.Errorf("provider returned an empty embedding for input %d", missing[j]))
			}
		}
		for j, i := range missing {
			vectors[i] = resp.Data[j].Embedding
			g.cache.CacheEmbedding(keys[i], vectors[i])
		}
		usage = resp.Usage
	}

	data := make([]types.EmbeddingObject, len(vectors))
	for i, vector := range vectors {
		data[i] = types.EmbeddingObject{Object: "embedding", Embedding: vector, Index: i}
	}
	result.Response = &types.EmbeddingResponse{
		Object: "list",
		Data:   data,
		Model:  req.Model,
		Usage:  usage,
	}
	return result, nil
}

func (g *Gateway) completionKey(req *types.ChatRequest) (string, error) {
	messages, err := json.Marshal(req.Messages)
	if err != nil {
		return "", err
	}

	extra := make(map[string][]byte, len(req.Extra)+4)
	for k, v := range req.Extra {
		extra[k] = v
	}
	for name, value := range map[string]any{
		"stop":              req.Stop,
		"presence_penalty":  req.PresencePenalty,
		"frequency_penalty": req.FrequencyPenalty,
		"response_format":   req.ResponseFormat,
	} {
		encoded, err := json.Marshal(value)
		if err != nil {
			return "", err
		}
		extra[name] = encoded
	}

	return g.keys.Generate(cache.KeyParams{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		TopP:        req.TopP,
		Namespace:   g.namespace,
		Extra:       extra,
	}), nil
}

func (g *Gateway) embeddingKey(req *types.EmbeddingRequest, input string) string {
	model := req.Model
	if req.Dimensions > 0 {
		model = fmt.Sprintf("%s@%d", model, req.Dimensions)
	}
	if g.namespace != "" {
		model = g.namespace + "/" + model
	}
	return g.keys.EmbeddingKey(model, input)
}

// cacheable reports whether resp is a complete single-choice answer.
func cacheable(resp *types.ChatResponse) bool {
	if resp == nil || len(resp.Choices) != 1 {
		return false
	}
	choice := resp.Choices[0]
	return choice.FinishReason == "stop" && choice.Message.Text() != ""
}

func responseMetadata(resp *types.ChatResponse) map[string]any {
	meta := map[string]any{
		metaID:           resp.ID,
		metaModel:        resp.Model,
		metaFinishReason: resp.Choices[0].FinishReason,
	}
	if resp.Usage != nil {
		meta[metaUsage] = *resp.Usage
	}
	return meta
}

func responseFromCache(model string, entry cache.Response) *types.ChatResponse {
	resp := &types.ChatResponse{
		Object:  "chat.completion",
		Created: entry.Timestamp.Unix(),
		Model:   model,
		Choices: []types.Choice{{
			Message:      types.NewTextMessage("assistant", entry.Content),
			FinishReason: "stop",
		}},
	}
	if id, ok := entry.Metadata[metaID].(string); ok {
		resp.ID = id
	}
	if m, ok := entry.Metadata[metaModel].(string); ok && m != "" {
		resp.Model = m
	}
	if reason, ok := entry.Metadata[metaFinishReason].(string); ok {
		resp.Choices[0].FinishReason = reason
	}
	if usage, ok := entry.Metadata[metaUsage].(types.Usage); ok {
		resp.Usage = &usage
	}
	return resp
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Stats reports scheduler and cache state together.
type Stats struct {
	Scheduler scheduler.Stats `json:"scheduler"`
	Cache     cache.Stats     `json:"cache"`
	At        time.Time       `json:"at"`
}

// Stats returns a snapshot of scheduler and cache statistics.
func (g *Gateway) Stats() Stats {
	return Stats{
		Scheduler: g.scheduler.Stats(),
		Cache:     g.cache.Stats(),
		At:        time.Now(),
	}
}

// SchedulerStats returns the scheduler snapshot.
func (g *Gateway) SchedulerStats() scheduler.Stats {
	return g.scheduler.Stats()
}

// CacheStats returns the cache snapshot.
func (g *Gateway) CacheStats() cache.Stats {
	return g.cache.Stats()
}

// ClearQueue cancels every pending request and returns how many there were.
func (g *Gateway) ClearQueue() int {
	n := g.scheduler.ClearQueue()
	g.logger.Info("scheduler queue cleared", "cancelled", n)
	return n
}

// Cache returns the underlying cache.
func (g *Gateway) Cache() *cache.AICache {
	return g.cache
}
