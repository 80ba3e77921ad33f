package api //nolint:revive // package name is intentional

import (
	"context"
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/llmgate/internal/scheduler"
	llmerrors "github.com/blueberrycongee/llmgate/pkg/errors"
)

// ErrorResponse is the OpenAI-compatible error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes the error payload.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// toLLMError maps any error from the gateway onto an LLMError.
func toLLMError(err error, model string) *llmerrors.LLMError {
	if llmErr, ok := llmerrors.As(err); ok {
		return llmErr
	}

	switch {
	case errors.Is(err, scheduler.ErrQueueCleared):
		return llmerrors.NewCancelledError(model, "request was cancelled because the queue was cleared")
	case errors.Is(err, scheduler.ErrSchedulerClosed):
		return llmerrors.NewCancelledError(model, "server is shutting down")
	case errors.Is(err, scheduler.ErrRequestCancelled), errors.Is(err, context.Canceled):
		return llmerrors.NewCancelledError(model, "request was cancelled before completion")
	case errors.Is(err, context.DeadlineExceeded):
		return llmerrors.NewTimeoutError("", model, "request timed out")
	default:
		return llmerrors.NewInternalError("", model, "internal error")
	}
}

func writeError(w http.ResponseWriter, llmErr *llmerrors.LLMError) {
	w.Header().Set("Content-Type", "application/json")
	if llmErr.Type == llmerrors.TypeRateLimit || llmErr.Type == llmerrors.TypeRequestCancelled {
		w.Header().Set("Retry-After", "1")
	}
	w.WriteHeader(llmErr.HTTPStatusCode())

	resp := ErrorResponse{
		Error: ErrorDetail{
			Message: llmErr.Message,
			Type:    llmErr.Type,
		},
	}
	_ = json.NewEncoder(w).Encode(resp)
}
