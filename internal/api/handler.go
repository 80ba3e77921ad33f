// Package api provides the HTTP surface of the gateway: OpenAI-compatible
// completion and embedding endpoints plus scheduler and cache controls.
package api //nolint:revive // package name is intentional

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/llmgate/internal/gateway"
	"github.com/blueberrycongee/llmgate/internal/healthcheck"
	"github.com/blueberrycongee/llmgate/internal/httputil"
	"github.com/blueberrycongee/llmgate/internal/observability"
	llmerrors "github.com/blueberrycongee/llmgate/pkg/errors"
	"github.com/blueberrycongee/llmgate/pkg/types"
)

const (
	// DefaultMaxBodySize is the default maximum request body size (10MB).
	DefaultMaxBodySize = 10 * 1024 * 1024

	// PriorityHeader carries the request priority. Higher is served first.
	PriorityHeader = "X-Priority"

	// CacheHeader reports HIT or MISS on completion and embedding responses.
	CacheHeader = "X-Cache"
)

// ReadinessChecker reports upstream readiness.
type ReadinessChecker interface {
	Status() healthcheck.Status
}

// Handler serves the gateway endpoints.
type Handler struct {
	gateway     *gateway.Gateway
	logger      *slog.Logger
	maxBodySize int64
	readiness   ReadinessChecker
	redactor    *observability.Redactor
}

// HandlerConfig contains configuration for Handler.
type HandlerConfig struct {
	MaxBodySize int64            // Maximum request body size in bytes
	Readiness   ReadinessChecker // Optional, nil reports ready
}

// NewHandler creates a new API handler.
func NewHandler(gw *gateway.Gateway, logger *slog.Logger, cfg *HandlerConfig) *Handler {
	maxBodySize := int64(DefaultMaxBodySize)
	if cfg != nil && cfg.MaxBodySize > 0 {
		maxBodySize = cfg.MaxBodySize
	}
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		gateway:     gw,
		logger:      logger,
		maxBodySize: maxBodySize,
		redactor:    observability.NewRedactor(),
	}
	if cfg != nil {
		h.readiness = cfg.Readiness
	}
	return h
}

// ChatCompletions handles POST /v1/chat/completions.
func (h *Handler) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger := observability.LoggerFromContext(r.Context(), h.logger)
	h.logRequest(logger, r)

	priority, err := parsePriority(r)
	if err != nil {
		writeError(w, llmerrors.NewInvalidRequestError("", "", err.Error()))
		return
	}

	var req types.ChatRequest
	if llmErr := h.decode(r, &req); llmErr != nil {
		writeError(w, llmErr)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, llmerrors.NewInvalidRequestError("", req.Model, err.Error()))
		return
	}

	result, err := h.gateway.Complete(r.Context(), &req, priority)
	if err != nil {
		llmErr := toLLMError(err, req.Model)
		logger.Error("chat completion failed", "model", req.Model, "priority", priority, "error", err)
		writeError(w, llmErr)
		return
	}

	logger.Debug("chat completion served",
		"model", req.Model,
		"priority", priority,
		"cached", result.Cached,
		"latency", time.Since(start),
	)
	h.writeJSON(w, http.StatusOK, result.Response, cacheStatus(result.Cached))
}

// Embeddings handles POST /v1/embeddings.
func (h *Handler) Embeddings(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger := observability.LoggerFromContext(r.Context(), h.logger)
	h.logRequest(logger, r)

	priority, err := parsePriority(r)
	if err != nil {
		writeError(w, llmerrors.NewInvalidRequestError("", "", err.Error()))
		return
	}

	var req types.EmbeddingRequest
	if llmErr := h.decode(r, &req); llmErr != nil {
		writeError(w, llmErr)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, llmerrors.NewInvalidRequestError("", req.Model, err.Error()))
		return
	}

	result, err := h.gateway.Embed(r.Context(), &req, priority)
	if err != nil {
		logger.Error("embedding failed", "model", req.Model, "priority", priority, "error", err)
		writeError(w, toLLMError(err, req.Model))
		return
	}

	logger.Debug("embedding served",
		"model", req.Model,
		"inputs", len(result.Response.Data),
		"cache_hits", result.CacheHits,
		"latency", time.Since(start),
	)
	h.writeJSON(w, http.StatusOK, result.Response, cacheStatus(result.Cached))
}

// Stats handles GET /v1/stats.
func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	stats := h.gateway.Stats()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"scheduler": map[string]any{
			"queue_length":            stats.Scheduler.QueueLength,
			"active_requests":         stats.Scheduler.ActiveRequests,
			"requests_this_window":    stats.Scheduler.RequestsThisWindow,
			"time_until_reset_ms":     stats.Scheduler.TimeUntilReset.Milliseconds(),
			"max_concurrent_requests": stats.Scheduler.MaxConcurrent,
			"max_requests_per_window": stats.Scheduler.MaxPerWindow,
		},
		"cache": stats.Cache,
	}, "")
}

// ClearQueue handles POST /v1/queue/clear.
func (h *Handler) ClearQueue(w http.ResponseWriter, _ *http.Request) {
	cancelled := h.gateway.ClearQueue()
	h.writeJSON(w, http.StatusOK, map[string]int{"cancelled": cancelled}, "")
}

// ClearCache handles DELETE /v1/cache?store=responses|embeddings|all.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	store := strings.ToLower(r.URL.Query().Get("store"))
	c := h.gateway.Cache()

	switch store {
	case "", "all":
		store = "all"
		c.ClearAll()
	case "responses":
		c.ClearResponseCache()
	case "embeddings":
		c.ClearEmbeddingCache()
	default:
		writeError(w, llmerrors.NewInvalidRequestError("", "", "store must be responses, embeddings or all"))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"cleared": store}, "")
}

// HealthCheck handles GET /health/live.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, "")
}

// ReadinessCheck handles GET /health/ready. It fails while the upstream
// probe reports the provider unreachable.
func (h *Handler) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.readiness == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, "")
		return
	}

	status := h.readiness.Status()
	code := http.StatusOK
	state := "ok"
	if !status.Ready {
		code = http.StatusServiceUnavailable
		state = "unavailable"
	}
	h.writeJSON(w, code, map[string]any{
		"status":   state,
		"upstream": status,
	}, "")
}

// logRequest records the incoming request at debug level with credential
// headers masked.
func (h *Handler) logRequest(logger *slog.Logger, r *http.Request) {
	if !logger.Enabled(r.Context(), slog.LevelDebug) {
		return
	}
	logger.Debug("request received",
		"method", r.Method,
		"path", r.URL.Path,
		"headers", h.redactor.RedactHeaders(r.Header),
	)
}

// decode reads a size-limited JSON body into v.
func (h *Handler) decode(r *http.Request, v any) *llmerrors.LLMError {
	defer func() { _ = r.Body.Close() }()

	body, err := httputil.ReadLimitedBody(r.Body, h.maxBodySize)
	if errors.Is(err, httputil.ErrResponseBodyTooLarge) {
		return llmerrors.NewInvalidRequestError("", "", "request body too large")
	}
	if err != nil {
		return llmerrors.NewInvalidRequestError("", "", "failed to read request body")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return llmerrors.NewInvalidRequestError("", "", "invalid JSON: "+err.Error())
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any, cache string) {
	w.Header().Set("Content-Type", "application/json")
	if cache != "" {
		w.Header().Set(CacheHeader, cache)
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func parsePriority(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.Header.Get(PriorityHeader))
	if raw == "" {
		return 0, nil
	}
	priority, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(PriorityHeader + " must be an integer")
	}
	return priority, nil
}

func cacheStatus(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}
