package healthcheck

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/llmgate/internal/metrics"
)

type scriptedPinger struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (s *scriptedPinger) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func (s *scriptedPinger) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var errUpstream = errors.New("connection refused")

func TestProber_NotReadyBeforeFirstProbe(t *testing.T) {
	prober := NewProber(DefaultConfig(), "probe-initial", &scriptedPinger{}, nil)

	status := prober.Status()
	assert.False(t, status.Ready)
	assert.Equal(t, ErrNotProbed.Error(), status.LastError)
}

func TestProber_CheckSuccess(t *testing.T) {
	prober := NewProber(DefaultConfig(), "probe-success", &scriptedPinger{}, nil)

	require.NoError(t, prober.Check(context.Background()))

	status := prober.Status()
	assert.True(t, status.Ready)
	assert.Empty(t, status.LastError)
	assert.False(t, status.LastCheck.IsZero())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ProviderUp.WithLabelValues("probe-success")))
}

func TestProber_FailureThreshold(t *testing.T) {
	pinger := &scriptedPinger{errs: []error{nil, errUpstream, errUpstream, errUpstream}}
	prober := NewProber(Config{Enabled: true, FailureThreshold: 3}, "probe-threshold", pinger, nil)
	ctx := context.Background()

	require.NoError(t, prober.Check(ctx))
	require.Error(t, prober.Check(ctx))
	require.Error(t, prober.Check(ctx))
	assert.True(t, prober.Ready(), "two failures stay below the threshold")
	assert.Equal(t, 2, prober.Status().ConsecutiveFailures)

	require.Error(t, prober.Check(ctx))
	status := prober.Status()
	assert.False(t, status.Ready)
	assert.Equal(t, errUpstream.Error(), status.LastError)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.ProviderUp.WithLabelValues("probe-threshold")))

	require.NoError(t, prober.Check(ctx))
	assert.True(t, prober.Ready())
	assert.Zero(t, prober.Status().ConsecutiveFailures)
}

func TestProber_CancelledContextNotRecorded(t *testing.T) {
	pinger := &scriptedPinger{errs: []error{context.Canceled}}
	prober := NewProber(DefaultConfig(), "probe-cancel", pinger, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = prober.Check(ctx)

	assert.Equal(t, ErrNotProbed.Error(), prober.Status().LastError)
}

func TestProber_StartRunsLoop(t *testing.T) {
	pinger := &scriptedPinger{}
	prober := NewProber(Config{Enabled: true, Interval: 10 * time.Millisecond, Timeout: time.Second}, "probe-loop", pinger, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	prober.Start(ctx)
	prober.Start(ctx)

	require.Eventually(t, func() bool { return pinger.callCount() >= 3 }, time.Second, 5*time.Millisecond)
	assert.True(t, prober.Ready())
}

func TestProber_StartDisabled(t *testing.T) {
	pinger := &scriptedPinger{}
	prober := NewProber(Config{Enabled: false, Interval: time.Millisecond}, "probe-disabled", pinger, nil)

	prober.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, pinger.callCount())
}

func TestProber_FirstFailureLogsProbeFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	pinger := &scriptedPinger{errs: []error{errUpstream, errUpstream, errUpstream}}
	prober := NewProber(Config{Enabled: true, FailureThreshold: 3}, "probe-first-failure", pinger, logger)
	ctx := context.Background()

	require.Error(t, prober.Check(ctx))
	assert.Contains(t, buf.String(), `"msg":"healthcheck probe failed"`)
	assert.NotContains(t, buf.String(), "upstream marked not ready")
	assert.NotContains(t, buf.String(), `"level":"ERROR"`)

	require.Error(t, prober.Check(ctx))
	require.Error(t, prober.Check(ctx))
	assert.NotContains(t, buf.String(), "upstream marked not ready",
		"never-ready upstream has no transition to report")

	pinger.mu.Lock()
	pinger.errs = nil
	pinger.mu.Unlock()
	require.NoError(t, prober.Check(ctx))
	assert.Contains(t, buf.String(), "upstream ready again")
}
