package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/blueberrycongee/llmgate/internal/cache"
	"github.com/blueberrycongee/llmgate/internal/scheduler"
)

type staticStats struct{}

func (staticStats) SchedulerStats() scheduler.Stats {
	return scheduler.Stats{QueueLength: 4, ActiveRequests: 2, RequestsThisWindow: 9, TimeUntilReset: time.Second}
}

func (staticStats) CacheStats() cache.Stats {
	return cache.Stats{
		Responses:  cache.StoreStats{Size: 3, MaxSize: 10, Hits: 7, Misses: 2},
		Embeddings: cache.StoreStats{Size: 1, MaxSize: 10, Hits: 1, Misses: 5},
	}
}

func TestInitOTelMetrics_Disabled(t *testing.T) {
	omp, err := InitOTelMetrics(context.Background(), OTelMetricsConfig{}, staticStats{})
	require.NoError(t, err)
	assert.Nil(t, omp)
	assert.NoError(t, omp.Shutdown(context.Background()))
}

func TestOTelMetricsProvider_ObservesStats(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	omp, err := newOTelMetricsProvider(provider, staticStats{})
	require.NoError(t, err)
	defer func() { _ = omp.Shutdown(context.Background()) }()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	byName := map[string]metricdata.Metrics{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		byName[m.Name] = m
	}

	gauge := func(name string) int64 {
		g, ok := byName[name].Data.(metricdata.Gauge[int64])
		require.True(t, ok, name)
		require.Len(t, g.DataPoints, 1)
		return g.DataPoints[0].Value
	}
	assert.Equal(t, int64(4), gauge("llmgate.scheduler.queue_length"))
	assert.Equal(t, int64(2), gauge("llmgate.scheduler.active_requests"))
	assert.Equal(t, int64(9), gauge("llmgate.scheduler.window_requests"))

	lookups, ok := byName["llmgate.cache.lookups"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	got := map[[2]string]int64{}
	for _, dp := range lookups.DataPoints {
		store, _ := dp.Attributes.Value(attribute.Key("store"))
		result, _ := dp.Attributes.Value(attribute.Key("result"))
		got[[2]string{store.AsString(), result.AsString()}] = dp.Value
	}
	assert.Equal(t, map[[2]string]int64{
		{cache.StoreResponses, "hit"}:   7,
		{cache.StoreResponses, "miss"}:  2,
		{cache.StoreEmbeddings, "hit"}:  1,
		{cache.StoreEmbeddings, "miss"}: 5,
	}, got)
}
