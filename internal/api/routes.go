package api //nolint:revive // package name is intentional

import "net/http"

// RegisterDataRoutes registers the OpenAI-compatible endpoints and liveness.
func (h *Handler) RegisterDataRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/chat/completions", h.ChatCompletions)
	mux.HandleFunc("POST /v1/embeddings", h.Embeddings)

	mux.HandleFunc("GET /health/live", h.HealthCheck)
	mux.HandleFunc("GET /health/ready", h.ReadinessCheck)
}

// RegisterAdminRoutes registers the operator endpoints.
func (h *Handler) RegisterAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/stats", h.Stats)
	mux.HandleFunc("POST /v1/queue/clear", h.ClearQueue)
	mux.HandleFunc("DELETE /v1/cache", h.ClearCache)
}
