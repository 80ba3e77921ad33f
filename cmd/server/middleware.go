package main

import (
	"net/http"

	"github.com/blueberrycongee/llmgate/internal/metrics"
	"github.com/blueberrycongee/llmgate/internal/observability"
)

func buildMiddlewareStack(next http.Handler) http.Handler {
	if next == nil {
		return nil
	}
	handler := metrics.Middleware(next)
	handler = observability.RequestIDMiddleware(handler)
	return handler
}
