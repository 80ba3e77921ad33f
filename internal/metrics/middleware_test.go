package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeModelLabel_StripsProviderPrefix(t *testing.T) {
	if got := sanitizeModelLabel("openai/gpt-4o-mini"); got != "gpt-4o-mini" {
		t.Fatalf("sanitizeModelLabel = %q, want %q", got, "gpt-4o-mini")
	}
}

func TestSanitizeModelLabel_ReplacesInvalidChars(t *testing.T) {
	got := sanitizeModelLabel("gpt-4o-mini\n\t🚨")
	if strings.ContainsAny(got, "\n\t") {
		t.Fatalf("sanitizeModelLabel contains whitespace: %q", got)
	}
	if got == "unknown" {
		t.Fatalf("sanitizeModelLabel unexpectedly returned %q", got)
	}
}

func TestSanitizeModelLabel_CapsLength(t *testing.T) {
	long := strings.Repeat("a", maxModelLabelLen+50)
	got := sanitizeModelLabel(long)
	if len(got) != maxModelLabelLen {
		t.Fatalf("sanitizeModelLabel len=%d, want %d", len(got), maxModelLabelLen)
	}
}

func TestSanitizeModelLabel_EmptyFallback(t *testing.T) {
	if got := sanitizeModelLabel("   "); got != "unknown" {
		t.Fatalf("sanitizeModelLabel = %q, want %q", got, "unknown")
	}
}

func TestMiddleware_RecordsMatchedRoute(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /probe/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := Middleware(mux)

	before := testutil.CollectAndCount(HTTPRequestDuration)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/probe/42", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	after := testutil.CollectAndCount(HTTPRequestDuration)
	assert.Equal(t, before+1, after, "a new label series should appear for the matched route")
	assert.Equal(t, float64(0), testutil.ToFloat64(HTTPRequestsInFlight.WithLabelValues("all")))
}

func TestRecordTokens_SkipsZero(t *testing.T) {
	RecordTokens("unit", "model-a", 0)
	RecordTokens("unit", "model-a", 12)
	assert.Equal(t, float64(12), testutil.ToFloat64(TotalTokens.WithLabelValues("unit", "model-a")))
}
