package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Scheduler Metrics
// =============================================================================

var (
	// SchedulerQueueLength tracks the number of pending requests.
	SchedulerQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_queue_length",
			Help:      "Number of requests waiting for admission",
		},
	)

	// SchedulerActiveRequests tracks the number of in-flight requests.
	SchedulerActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_active_requests",
			Help:      "Number of admitted requests currently executing",
		},
	)

	// SchedulerWindowRequests tracks admissions in the current rate window.
	SchedulerWindowRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_window_requests",
			Help:      "Requests admitted in the current rate window",
		},
	)

	// SchedulerAdmissions counts admitted requests.
	SchedulerAdmissions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_admissions_total",
			Help:      "Total requests admitted for execution",
		},
	)

	// SchedulerSettled counts settled requests by outcome.
	SchedulerSettled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_settled_total",
			Help:      "Total requests settled, by outcome",
		},
		[]string{"outcome"}, // success, error, cancelled
	)

	// SchedulerQueueWait tracks time spent pending before admission.
	SchedulerQueueWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_queue_wait_seconds",
			Help:      "Time between enqueue and admission in seconds",
			Buckets:   LatencyBuckets,
		},
	)

	// SchedulerWindowResets counts rate window resets.
	SchedulerWindowResets = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_window_resets_total",
			Help:      "Total rate window resets",
		},
	)
)

// =============================================================================
// Cache Metrics
// =============================================================================

var (
	// CacheHits counts cache hits.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total cache hits",
		},
		[]string{"store"}, // responses, embeddings
	)

	// CacheMisses counts cache misses, expired entries included.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total cache misses",
		},
		[]string{"store"},
	)

	// CacheWrites counts cache inserts and overwrites.
	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_writes_total",
			Help:      "Total cache writes",
		},
		[]string{"store"},
	)

	// CacheEvictions counts capacity evictions.
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Total entries evicted to stay within capacity",
		},
		[]string{"store"},
	)

	// CacheSize tracks current cache size.
	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_size",
			Help:      "Current cache size (entries)",
		},
		[]string{"store"},
	)
)

// =============================================================================
// HTTP Server Metrics
// =============================================================================

var (
	// HTTPRequestDuration tracks HTTP request duration by route.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "route", "status_code"},
	)

	// HTTPRequestsInFlight tracks currently processing HTTP requests.
	HTTPRequestsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
		[]string{"route"},
	)
)
