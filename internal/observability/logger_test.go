package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewLogger_RedactsMessageAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: slog.LevelInfo, Output: &buf, JSONFormat: true}, NewRedactor())

	logger.Info("calling upstream with Bearer abc.def-123",
		"api_key", "plain-value",
		"detail", "key sk-abcdefghijklmnopqrstuvwxyz123456",
		"error", errors.New("Authorization: secret-token"),
		"total_tokens", 42,
	)

	out := buf.String()
	for _, leaked := range []string{"abc.def-123", "plain-value", "sk-abcdefghijklmnopqrstuvwxyz123456", "secret-token"} {
		if strings.Contains(out, leaked) {
			t.Errorf("log output leaked %q: %s", leaked, out)
		}
	}
	if !strings.Contains(out, `"total_tokens":42`) {
		t.Errorf("expected non-sensitive attr to survive: %s", out)
	}
}

func TestNewLogger_RedactsWithAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: slog.LevelInfo, Output: &buf, JSONFormat: true}, NewRedactor())

	logger.With("password", "hunter2").
		Info("provider configured", slog.Group("provider", "base_url", "https://api.openai.com", "secret", "s3cr3t"))

	out := buf.String()
	if strings.Contains(out, "hunter2") || strings.Contains(out, "s3cr3t") {
		t.Errorf("log output leaked secret: %s", out)
	}
	if !strings.Contains(out, "https://api.openai.com") {
		t.Errorf("expected base_url to survive: %s", out)
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: slog.LevelWarn, Output: &buf}, nil)

	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn should be logged")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(LoggerConfig{Level: slog.LevelInfo, Output: &buf, JSONFormat: true}, nil)

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	ctx = ContextWithRequestID(ctx, "req-123")
	LoggerFromContext(ctx, base).Info("hello")

	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-123"`) {
		t.Errorf("expected request_id in output: %s", out)
	}
	if !strings.Contains(out, span.SpanContext().TraceID().String()) {
		t.Errorf("expected trace_id in output: %s", out)
	}

	buf.Reset()
	LoggerFromContext(context.Background(), base).Info("plain")
	if strings.Contains(buf.String(), "request_id") {
		t.Errorf("unexpected request_id: %s", buf.String())
	}
}
