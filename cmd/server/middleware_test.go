package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/blueberrycongee/llmgate/internal/observability"
)

func TestBuildMiddlewareStack_PropagatesRequestID(t *testing.T) {
	var seen string
	handler := buildMiddlewareStack(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = observability.RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set(observability.RequestIDHeader, "req-123")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusTeapot)
	}
	if seen != "req-123" {
		t.Fatalf("request id in context = %q, want req-123", seen)
	}
	if got := rr.Header().Get(observability.RequestIDHeader); got != "req-123" {
		t.Fatalf("response request id = %q, want req-123", got)
	}
}

func TestBuildMiddlewareStack_Nil(t *testing.T) {
	if buildMiddlewareStack(nil) != nil {
		t.Fatal("expected nil handler for nil input")
	}
}
