package observability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/blueberrycongee/llmgate/internal/cache"
	"github.com/blueberrycongee/llmgate/internal/scheduler"
)

// MeterName is the instrumentation scope for exported gateway stats.
const MeterName = "llmgate"

// OTelMetricsConfig contains configuration for OTLP metrics export.
type OTelMetricsConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Endpoint       string        `yaml:"endpoint"`
	ExporterType   ExporterType  `yaml:"exporter_type"`
	ServiceName    string        `yaml:"service_name"`
	Insecure       bool          `yaml:"insecure"`
	ExportInterval time.Duration `yaml:"export_interval"`
}

// DefaultOTelMetricsConfig returns sensible defaults.
func DefaultOTelMetricsConfig() OTelMetricsConfig {
	return OTelMetricsConfig{
		Enabled:        false,
		Endpoint:       "localhost:4318",
		ExporterType:   ExporterHTTP,
		ServiceName:    "llmgate",
		Insecure:       true,
		ExportInterval: 60 * time.Second,
	}
}

// StatsSource supplies the snapshots exported on each collection.
type StatsSource interface {
	SchedulerStats() scheduler.Stats
	CacheStats() cache.Stats
}

// OTelMetricsProvider exports scheduler and cache stats as OTLP metrics.
type OTelMetricsProvider struct {
	provider     *sdkmetric.MeterProvider
	registration metric.Registration
}

// InitOTelMetrics starts periodic OTLP export of source's stats. It returns
// nil when export is disabled.
func InitOTelMetrics(ctx context.Context, cfg OTelMetricsConfig, source StatsSource) (*OTelMetricsProvider, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	exporter, err := newMetricExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}
	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = DefaultOTelMetricsConfig().ExportInterval
	}

	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(provider)

	omp, err := newOTelMetricsProvider(provider, source)
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, err
	}
	return omp, nil
}

func newOTelMetricsProvider(provider *sdkmetric.MeterProvider, source StatsSource) (*OTelMetricsProvider, error) {
	meter := provider.Meter(MeterName)

	queueLength, err := meter.Int64ObservableGauge("llmgate.scheduler.queue_length",
		metric.WithDescription("Requests waiting for admission"), metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}
	active, err := meter.Int64ObservableGauge("llmgate.scheduler.active_requests",
		metric.WithDescription("Requests currently running"), metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}
	windowCount, err := meter.Int64ObservableGauge("llmgate.scheduler.window_requests",
		metric.WithDescription("Requests admitted in the current rate window"), metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}
	cacheSize, err := meter.Int64ObservableGauge("llmgate.cache.size",
		metric.WithDescription("Entries held per cache store"), metric.WithUnit("{entry}"))
	if err != nil {
		return nil, err
	}
	cacheLookups, err := meter.Int64ObservableCounter("llmgate.cache.lookups",
		metric.WithDescription("Cache lookups by store and result"), metric.WithUnit("{lookup}"))
	if err != nil {
		return nil, err
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		sched := source.SchedulerStats()
		o.ObserveInt64(queueLength, int64(sched.QueueLength))
		o.ObserveInt64(active, int64(sched.ActiveRequests))
		o.ObserveInt64(windowCount, int64(sched.RequestsThisWindow))

		stats := source.CacheStats()
		for store, s := range map[string]cache.StoreStats{
			cache.StoreResponses:  stats.Responses,
			cache.StoreEmbeddings: stats.Embeddings,
		} {
			storeAttr := attribute.String("store", store)
			o.ObserveInt64(cacheSize, int64(s.Size), metric.WithAttributes(storeAttr))
			o.ObserveInt64(cacheLookups, s.Hits, metric.WithAttributes(storeAttr, attribute.String("result", "hit")))
			o.ObserveInt64(cacheLookups, s.Misses, metric.WithAttributes(storeAttr, attribute.String("result", "miss")))
		}
		return nil
	}, queueLength, active, windowCount, cacheSize, cacheLookups)
	if err != nil {
		return nil, err
	}

	return &OTelMetricsProvider{provider: provider, registration: registration}, nil
}

func newMetricExporter(ctx context.Context, cfg OTelMetricsConfig) (sdkmetric.Exporter, error) {
	switch ExporterType(strings.ToLower(string(cfg.ExporterType))) {
	case ExporterGRPC:
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case ExporterHTTP, "":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown exporter type %q", cfg.ExporterType)
	}
}

// Shutdown flushes and stops the exporter.
func (o *OTelMetricsProvider) Shutdown(ctx context.Context) error {
	if o == nil || o.provider == nil {
		return nil
	}
	if err := o.registration.Unregister(); err != nil {
		return err
	}
	return o.provider.Shutdown(ctx)
}
