package gateway

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/llmgate/internal/cache"
	"github.com/blueberrycongee/llmgate/internal/scheduler"
	llmerrors "github.com/blueberrycongee/llmgate/pkg/errors"
	"github.com/blueberrycongee/llmgate/pkg/types"
)

type fakeProvider struct {
	mu         sync.Mutex
	chatCalls  int
	embedCalls [][]string
	chatErr    error
	embedFn    func(inputs []string) (*types.EmbeddingResponse, error)
	block      chan struct{}
	started    chan struct{}
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) ChatCompletion(ctx context.Context, req *types.ChatRequest) (*types.ChatResponse, error) {
	p.mu.Lock()
	p.chatCalls++
	n := p.chatCalls
	err := p.chatErr
	block, started := p.block, p.started
	p.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &types.ChatResponse{
		ID:    fmt.Sprintf("chatcmpl-%d", n),
		Model: req.Model,
		Choices: []types.Choice{{
			Message:      types.NewTextMessage("assistant", "echo: "+req.Messages[len(req.Messages)-1].Text()),
			FinishReason: "stop",
		}},
		Usage: &types.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
	}, nil
}

func (p *fakeProvider) Embedding(_ context.Context, req *types.EmbeddingRequest) (*types.EmbeddingResponse, error) {
	inputs := req.Input.Values()
	p.mu.Lock()
	p.embedCalls = append(p.embedCalls, inputs)
	embedFn := p.embedFn
	p.mu.Unlock()

	if embedFn != nil {
		return embedFn(inputs)
	}

	data := make([]types.EmbeddingObject, len(inputs))
	for i, input := range inputs {
		data[i] = types.EmbeddingObject{Object: "embedding", Index: i, Embedding: []float64{float64(len(input)), float64(input[0])}}
	}
	return &types.EmbeddingResponse{Object: "list", Model: req.Model, Data: data, Usage: types.Usage{TotalTokens: len(inputs)}}, nil
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chatCalls
}

func newTestGateway(t *testing.T, prov *fakeProvider, maxConcurrent int) *Gateway {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sched, err := scheduler.New(scheduler.Config{
		MaxConcurrentRequests: maxConcurrent,
		MaxRequestsPerMinute:  100,
		Logger:                logger,
	})
	require.NoError(t, err)
	sched.Start(context.Background())
	t.Cleanup(func() { _ = sched.Close() })

	gw, err := New(Config{
		Cache:     cache.New(cache.DefaultConfig(), logger),
		Scheduler: sched,
		Provider:  prov,
		Logger:    logger,
	})
	require.NoError(t, err)
	return gw
}

func chatRequest(content string) *types.ChatRequest {
	return &types.ChatRequest{
		Model:    "gpt-4",
		Messages: []types.ChatMessage{types.NewTextMessage("user", content)},
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestComplete_MissThenHit(t *testing.T) {
	prov := &fakeProvider{}
	gw := newTestGateway(t, prov, 2)
	ctx := context.Background()

	first, err := gw.Complete(ctx, chatRequest("hello"), 0)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, "echo: hello", first.Response.Content())

	second, err := gw.Complete(ctx, chatRequest("hello"), 0)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, "echo: hello", second.Response.Content())
	assert.Equal(t, first.Response.ID, second.Response.ID)
	require.NotNil(t, second.Response.Usage)
	assert.Equal(t, 5, second.Response.Usage.TotalTokens)

	assert.Equal(t, 1, prov.calls())

	stats := gw.Stats()
	assert.Equal(t, int64(1), stats.Cache.Responses.Hits)
	assert.Equal(t, int64(1), stats.Cache.Responses.Misses)
}

func TestComplete_ParametersAffectKey(t *testing.T) {
	prov := &fakeProvider{}
	gw := newTestGateway(t, prov, 2)
	ctx := context.Background()

	temp := 0.2
	withTemp := chatRequest("hello")
	withTemp.Temperature = &temp

	withStop := chatRequest("hello")
	withStop.Stop = []string{"\n"}

	for _, req := range []*types.ChatRequest{chatRequest("hello"), withTemp, withStop, chatRequest("other")} {
		res, err := gw.Complete(ctx, req, 0)
		require.NoError(t, err)
		assert.False(t, res.Cached)
	}
	assert.Equal(t, 4, prov.calls())
}

func TestComplete_FailureNotCached(t *testing.T) {
	prov := &fakeProvider{chatErr: llmerrors.NewRateLimitError("fake", "gpt-4", "slow down")}
	gw := newTestGateway(t, prov, 1)
	ctx := context.Background()

	_, err := gw.Complete(ctx, chatRequest("hello"), 0)
	llmErr, ok := llmerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, llmerrors.TypeRateLimit, llmErr.Type)

	prov.mu.Lock()
	prov.chatErr = nil
	prov.mu.Unlock()

	res, err := gw.Complete(ctx, chatRequest("hello"), 0)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, 2, prov.calls())
}

func TestComplete_ClearQueueRejectsPending(t *testing.T) {
	prov := &fakeProvider{block: make(chan struct{}), started: make(chan struct{}, 4)}
	gw := newTestGateway(t, prov, 1)
	ctx := context.Background()

	firstDone := make(chan error, 1)
	go func() {
		_, err := gw.Complete(ctx, chatRequest("first"), 0)
		firstDone <- err
	}()
	<-prov.started

	secondDone := make(chan error, 1)
	go func() {
		_, err := gw.Complete(ctx, chatRequest("second"), 0)
		secondDone <- err
	}()
	require.Eventually(t, func() bool {
		return gw.Stats().Scheduler.QueueLength == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, gw.ClearQueue())
	assert.ErrorIs(t, <-secondDone, scheduler.ErrQueueCleared)

	close(prov.block)
	assert.NoError(t, <-firstDone)
	assert.Equal(t, 1, prov.calls())
}

func TestEmbed_PerInputCaching(t *testing.T) {
	prov := &fakeProvider{}
	gw := newTestGateway(t, prov, 2)
	ctx := context.Background()

	first, err := gw.Embed(ctx, &types.EmbeddingRequest{
		Model: "text-embedding-3-small",
		Input: types.NewEmbeddingInputFromStrings([]string{"a", "bb"}),
	}, 0)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Zero(t, first.CacheHits)
	require.Len(t, first.Response.Data, 2)

	second, err := gw.Embed(ctx, &types.EmbeddingRequest{
		Model: "text-embedding-3-small",
		Input: types.NewEmbeddingInputFromStrings([]string{"bb", "ccc", "a"}),
	}, 0)
	require.NoError(t, err)
	assert.False(t, second.Cached)
	assert.Equal(t, 2, second.CacheHits)

	require.Len(t, second.Response.Data, 3)
	assert.Equal(t, []float64{2, 'b'}, second.Response.Data[0].Embedding)
	assert.Equal(t, []float64{3, 'c'}, second.Response.Data[1].Embedding)
	assert.Equal(t, []float64{1, 'a'}, second.Response.Data[2].Embedding)
	for i, obj := range second.Response.Data {
		assert.Equal(t, i, obj.Index)
	}

	third, err := gw.Embed(ctx, &types.EmbeddingRequest{
		Model: "text-embedding-3-small",
		Input: types.NewEmbeddingInputFromString("ccc"),
	}, 0)
	require.NoError(t, err)
	assert.True(t, third.Cached)

	prov.mu.Lock()
	defer prov.mu.Unlock()
	assert.Equal(t, [][]string{{"a", "bb"}, {"ccc"}}, prov.embedCalls)
}

func TestEmbed_FailureNotCached(t *testing.T) {
	prov := &fakeProvider{}
	gw := newTestGateway(t, prov, 2)
	ctx := context.Background()

	embedRequest := func(inputs ...string) *types.EmbeddingRequest {
		return &types.EmbeddingRequest{
			Model: "text-embedding-3-small",
			Input: types.NewEmbeddingInputFromStrings(inputs),
		}
	}

	_, err := gw.Embed(ctx, embedRequest("a"), 0)
	require.NoError(t, err)

	failures := []struct {
		name string
		fn   func(inputs []string) (*types.EmbeddingResponse, error)
	}{
		{"provider error", func([]string) (*types.EmbeddingResponse, error) {
			return nil, llmerrors.NewServiceUnavailableError("fake", "text-embedding-3-small", "down")
		}},
		{"short response", func([]string) (*types.EmbeddingResponse, error) {
			return &types.EmbeddingResponse{Data: []types.EmbeddingObject{{Index: 0, Embedding: []float64{1}}}}, nil
		}},
		{"empty vector", func(inputs []string) (*types.EmbeddingResponse, error) {
			data := make([]types.EmbeddingObject, len(inputs))
			for i := range data {
				data[i] = types.EmbeddingObject{Index: i}
			}
			data[0].Embedding = []float64{1}
			return &types.EmbeddingResponse{Data: data}, nil
		}},
	}

	for _, f := range failures {
		t.Run(f.name, func(t *testing.T) {
			prov.mu.Lock()
			prov.embedFn = f.fn
			prov.mu.Unlock()

			res, err := gw.Embed(ctx, embedRequest("a", "b", "c"), 0)
			require.Error(t, err)
			assert.Nil(t, res)

			stats := gw.Stats().Cache.Embeddings
			assert.Equal(t, 1, stats.Size, "only the earlier success stays cached")
		})
	}

	prov.mu.Lock()
	prov.embedFn = nil
	prov.mu.Unlock()

	hit, err := gw.Embed(ctx, embedRequest("a"), 0)
	require.NoError(t, err)
	assert.True(t, hit.Cached)
	assert.Equal(t, []float64{1, 'a'}, hit.Response.Data[0].Embedding)

	miss, err := gw.Embed(ctx, embedRequest("b", "c"), 0)
	require.NoError(t, err)
	assert.False(t, miss.Cached)
	assert.Zero(t, miss.CacheHits)
	for _, obj := range miss.Response.Data {
		assert.NotEmpty(t, obj.Embedding)
	}
}

func TestEmbed_ModelAndDimensionsSeparateEntries(t *testing.T) {
	prov := &fakeProvider{}
	gw := newTestGateway(t, prov, 2)
	ctx := context.Background()

	for _, req := range []*types.EmbeddingRequest{
		{Model: "small", Input: types.NewEmbeddingInputFromString("x")},
		{Model: "large", Input: types.NewEmbeddingInputFromString("x")},
		{Model: "small", Dimensions: 256, Input: types.NewEmbeddingInputFromString("x")},
	} {
		res, err := gw.Embed(ctx, req, 0)
		require.NoError(t, err)
		assert.False(t, res.Cached)
	}
}

func TestCacheable(t *testing.T) {
	ok := &types.ChatResponse{Choices: []types.Choice{{Message: types.NewTextMessage("assistant", "x"), FinishReason: "stop"}}}
	truncated := &types.ChatResponse{Choices: []types.Choice{{Message: types.NewTextMessage("assistant", "x"), FinishReason: "length"}}}
	empty := &types.ChatResponse{Choices: []types.Choice{{Message: types.NewTextMessage("assistant", ""), FinishReason: "stop"}}}

	assert.True(t, cacheable(ok))
	assert.False(t, cacheable(truncated))
	assert.False(t, cacheable(empty))
	assert.False(t, cacheable(&types.ChatResponse{}))
	assert.False(t, cacheable(nil))
}
