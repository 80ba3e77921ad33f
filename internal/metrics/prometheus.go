// Package metrics provides Prometheus metrics for the admission scheduler,
// the response/embedding cache, and the HTTP surface in front of them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "llmgate"
)

// LatencyBuckets defines histogram buckets for latency metrics (in seconds).
// Queue waits can reach a full rate window, so the tail goes past 60s.
var LatencyBuckets = []float64{
	0.005, 0.0125, 0.025, 0.05, 0.1, 0.25, 0.5,
	1.0, 2.5, 5.0, 10.0, 15.0, 30.0, 45.0, 60.0,
	90.0, 120.0, 300.0,
}

// Settlement outcomes for scheduler requests.
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

// =============================================================================
// Provider Metrics
// =============================================================================

var (
	// ProviderRequests counts outbound provider calls by operation and status.
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total number of outbound provider calls",
		},
		[]string{"provider", "operation", "status"},
	)

	// ProviderLatency tracks outbound provider call latency.
	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_latency_seconds",
			Help:      "Outbound provider call latency in seconds",
			Buckets:   LatencyBuckets,
		},
		[]string{"provider", "operation"},
	)

	// TotalTokens counts tokens reported by the provider.
	TotalTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "total_tokens",
			Help:      "Total tokens used",
		},
		[]string{"provider", "model"},
	)

	// ProviderUp reports the result of the last readiness probe (1 = up).
	ProviderUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "provider_up",
			Help:      "Whether the last upstream readiness probe succeeded",
		},
		[]string{"provider"},
	)
)
