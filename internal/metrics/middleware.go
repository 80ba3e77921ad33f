package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RecordProviderCall records metrics for a completed outbound provider call.
func RecordProviderCall(provider, operation string, statusCode int, latency time.Duration) {
	ProviderRequests.WithLabelValues(provider, operation, strconv.Itoa(statusCode)).Inc()
	ProviderLatency.WithLabelValues(provider, operation).Observe(latency.Seconds())
}

// RecordTokens records token usage reported by a provider.
func RecordTokens(provider, model string, totalTokens int) {
	if totalTokens > 0 {
		TotalTokens.WithLabelValues(provider, sanitizeModelLabel(model)).Add(float64(totalTokens))
	}
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush implements http.Flusher interface for streaming support.
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Middleware returns an HTTP middleware that records request metrics.
// The route label is the ServeMux pattern that matched, so label
// cardinality stays bounded by the route table.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		HTTPRequestsInFlight.WithLabelValues("all").Inc()
		defer HTTPRequestsInFlight.WithLabelValues("all").Dec()

		next.ServeHTTP(recorder, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestDuration.WithLabelValues(
			r.Method, route, strconv.Itoa(recorder.statusCode),
		).Observe(time.Since(start).Seconds())
	})
}

const maxModelLabelLen = 64

func sanitizeModelLabel(model string) string {
	modelName := model
	if idx := strings.Index(model, "/"); idx >= 0 {
		modelName = model[idx+1:]
	}
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(min(len(modelName), maxModelLabelLen))
	for _, r := range modelName {
		if (r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') ||
			r == '-' || r == '_' || r == '.' || r == ':' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
		if b.Len() >= maxModelLabelLen {
			break
		}
	}

	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "unknown"
	}
	return out
}
