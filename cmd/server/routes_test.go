package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/blueberrycongee/llmgate/internal/config"
)

type fakeHandler struct{}

func (fakeHandler) RegisterDataRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/chat/completions", func(http.ResponseWriter, *http.Request) {})
}

func (fakeHandler) RegisterAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/stats", func(http.ResponseWriter, *http.Request) {})
}

func TestBuildMuxes_NilConfig(t *testing.T) {
	if _, err := buildMuxes(nil, fakeHandler{}); err != errNilConfig {
		t.Fatalf("buildMuxes(nil) error = %v, want errNilConfig", err)
	}
}

func TestBuildMuxes_AdminPortDisabled_RegistersAllOnDataMux(t *testing.T) {
	cfg := &config.Config{
		Server:  config.ServerConfig{Port: 8080},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}

	muxes, err := buildMuxes(cfg, fakeHandler{})
	if err != nil {
		t.Fatalf("buildMuxes() error = %v", err)
	}

	if muxes.Admin != nil {
		t.Fatalf("expected no admin mux when admin_port is disabled")
	}

	if got := routePattern(muxes.Data, http.MethodPost, "/v1/chat/completions"); got != "POST /v1/chat/completions" {
		t.Fatalf("data mux missing chat route, got pattern %q", got)
	}

	if got := routePattern(muxes.Data, http.MethodGet, "/v1/stats"); got != "GET /v1/stats" {
		t.Fatalf("data mux missing admin route, got pattern %q", got)
	}

	if got := routePattern(muxes.Data, http.MethodGet, "/metrics"); got != "GET /metrics" {
		t.Fatalf("data mux missing metrics route, got pattern %q", got)
	}
}

func TestBuildMuxes_AdminPortEnabled_SplitsRoutes(t *testing.T) {
	cfg := &config.Config{
		Server:  config.ServerConfig{Port: 8080, AdminPort: 9090},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}

	muxes, err := buildMuxes(cfg, fakeHandler{})
	if err != nil {
		t.Fatalf("buildMuxes() error = %v", err)
	}

	if muxes.Admin == nil {
		t.Fatalf("expected admin mux when admin_port is enabled")
	}

	if got := routePattern(muxes.Data, http.MethodPost, "/v1/chat/completions"); got != "POST /v1/chat/completions" {
		t.Fatalf("data mux missing chat route, got pattern %q", got)
	}

	if got := routePattern(muxes.Admin, http.MethodPost, "/v1/chat/completions"); got != "" {
		t.Fatalf("admin mux should not have data routes, got pattern %q", got)
	}

	if got := routePattern(muxes.Data, http.MethodGet, "/v1/stats"); got != "" {
		t.Fatalf("data mux should not have admin routes, got pattern %q", got)
	}

	if got := routePattern(muxes.Admin, http.MethodGet, "/v1/stats"); got != "GET /v1/stats" {
		t.Fatalf("admin mux missing admin routes, got pattern %q", got)
	}
}

func TestBuildMuxes_MetricsDisabled(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{Port: 8080}}

	muxes, err := buildMuxes(cfg, fakeHandler{})
	if err != nil {
		t.Fatalf("buildMuxes() error = %v", err)
	}
	if got := routePattern(muxes.Data, http.MethodGet, "/metrics"); got != "" {
		t.Fatalf("metrics route registered while disabled, got pattern %q", got)
	}
}

func routePattern(mux *http.ServeMux, method, path string) string {
	req := httptest.NewRequest(method, path, nil)
	_, pattern := mux.Handler(req)
	return pattern
}
