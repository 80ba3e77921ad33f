// Package errors defines unified error types for gateway operations.
// Provider failures are mapped to these types before they reach a client.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// LLMError represents a standardized error from an upstream provider or from
// the gateway itself. It carries what is needed to log it and answer the client.
type LLMError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Retryable  bool   `json:"-"`
}

// Error implements the error interface.
func (e *LLMError) Error() string {
	return fmt.Sprintf("[%s] %s (provider=%s, model=%s, code=%d)",
		e.Type, e.Message, e.Provider, e.Model, e.StatusCode)
}

// HTTPStatusCode returns the appropriate HTTP status code for the error.
func (e *LLMError) HTTPStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

// Common error types as constants for consistency.
const (
	TypeAuthentication     = "authentication_error"
	TypeRateLimit          = "rate_limit_error"
	TypeInvalidRequest     = "invalid_request_error"
	TypeNotFound           = "not_found_error"
	TypeTimeout            = "timeout_error"
	TypeServiceUnavailable = "service_unavailable_error"
	TypeInternalError      = "internal_error"
	TypeContextLength      = "context_length_exceeded"
	TypeContentPolicy      = "content_policy_violation"
	TypeRequestCancelled   = "request_cancelled"
)

func newError(status int, typ, provider, model, message string, retryable bool) *LLMError {
	return &LLMError{
		StatusCode: status,
		Message:    message,
		Type:       typ,
		Provider:   provider,
		Model:      model,
		Retryable:  retryable,
	}
}

// NewAuthenticationError creates an authentication error (401).
func NewAuthenticationError(provider, model, message string) *LLMError {
	return newError(http.StatusUnauthorized, TypeAuthentication, provider, model, message, false)
}

// NewRateLimitError creates a rate limit error (429).
func NewRateLimitError(provider, model, message string) *LLMError {
	return newError(http.StatusTooManyRequests, TypeRateLimit, provider, model, message, true)
}

// NewInvalidRequestError creates an invalid request error (400).
func NewInvalidRequestError(provider, model, message string) *LLMError {
	return newError(http.StatusBadRequest, TypeInvalidRequest, provider, model, message, false)
}

// NewNotFoundError creates a not found error (404).
func NewNotFoundError(provider, model, message string) *LLMError {
	return newError(http.StatusNotFound, TypeNotFound, provider, model, message, false)
}

// NewTimeoutError creates a timeout error (408).
func NewTimeoutError(provider, model, message string) *LLMError {
	return newError(http.StatusRequestTimeout, TypeTimeout, provider, model, message, true)
}

// NewServiceUnavailableError creates a service unavailable error (503).
func NewServiceUnavailableError(provider, model, message string) *LLMError {
	return newError(http.StatusServiceUnavailable, TypeServiceUnavailable, provider, model, message, true)
}

// NewInternalError creates an internal server error (500).
func NewInternalError(provider, model, message string) *LLMError {
	return newError(http.StatusInternalServerError, TypeInternalError, provider, model, message, false)
}

// NewCancelledError creates an error for a request that was dropped before it
// reached the provider, e.g. a cleared queue or a shutdown (503).
func NewCancelledError(model, message string) *LLMError {
	return newError(http.StatusServiceUnavailable, TypeRequestCancelled, "", model, message, true)
}

// FromStatus maps an upstream HTTP status code to an LLMError.
func FromStatus(statusCode int, provider, model, message string) *LLMError {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return NewAuthenticationError(provider, model, message)
	case http.StatusTooManyRequests:
		return NewRateLimitError(provider, model, message)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return NewInvalidRequestError(provider, model, message)
	case http.StatusNotFound:
		return NewNotFoundError(provider, model, message)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return NewTimeoutError(provider, model, message)
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return NewServiceUnavailableError(provider, model, message)
	default:
		if statusCode >= 500 {
			return NewInternalError(provider, model, message)
		}
		return newError(statusCode, TypeInvalidRequest, provider, model, message, false)
	}
}

// As returns the LLMError in err's chain, if any.
func As(err error) (*LLMError, bool) {
	var llmErr *LLMError
	if stderrors.As(err, &llmErr) {
		return llmErr, true
	}
	return nil, false
}

// IsRetryable reports whether err is an LLMError the client may retry.
func IsRetryable(err error) bool {
	llmErr, ok := As(err)
	return ok && llmErr.Retryable
}
