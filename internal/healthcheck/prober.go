// Package healthcheck provides proactive upstream probing for readiness.
package healthcheck

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blueberrycongee/llmgate/internal/metrics"
)

const (
	defaultProbeInterval = 30 * time.Second
	defaultProbeTimeout  = 10 * time.Second
	defaultFailThreshold = 3
)

// ErrNotProbed is reported by Status before the first probe completes.
var ErrNotProbed = errors.New("healthcheck: upstream not probed yet")

// Config controls the proactive health checker behavior.
type Config struct {
	Enabled          bool          `yaml:"enabled"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold int           `yaml:"failure_threshold"` // Consecutive failures before not ready
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		Interval:         defaultProbeInterval,
		Timeout:          defaultProbeTimeout,
		FailureThreshold: defaultFailThreshold,
	}
}

// Pinger checks that an upstream is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Status is the last known upstream state.
type Status struct {
	Ready               bool      `json:"ready"`
	LastCheck           time.Time `json:"last_check,omitempty"`
	LastError           string    `json:"last_error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

// Prober periodically pings the upstream and tracks readiness. A single
// failure does not flip readiness; FailureThreshold consecutive ones do.
type Prober struct {
	cfg     Config
	name    string
	target  Pinger
	logger  *slog.Logger
	started atomic.Bool

	mu     sync.RWMutex
	status Status
	probed bool
}

// NewProber creates a new health checker for target.
func NewProber(cfg Config, name string, target Pinger, logger *slog.Logger) *Prober {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultProbeInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultProbeTimeout
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Prober{
		cfg:    cfg,
		name:   name,
		target: target,
		logger: logger,
	}
}

// Start begins the probe loop until the context is canceled.
func (p *Prober) Start(ctx context.Context) {
	if p == nil || !p.cfg.Enabled {
		return
	}
	if p.target == nil {
		p.logger.Warn("healthcheck prober missing target")
		return
	}
	if !p.started.CompareAndSwap(false, true) {
		return
	}

	go p.run(ctx)
}

func (p *Prober) run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.Check(ctx)

	for {
		select {
		case <-ticker.C:
			p.Check(ctx)
		case <-ctx.Done():
			p.logger.Info("healthcheck prober stopped")
			return
		}
	}
}

// Check runs one probe and records its outcome.
func (p *Prober) Check(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	err := p.target.Ping(probeCtx)
	if ctx.Err() != nil {
		// Shutdown, not an upstream failure.
		return err
	}
	p.record(err)
	return err
}

func (p *Prober) record(err error) {
	p.mu.Lock()
	firstProbe := !p.probed
	wasReady := p.status.Ready
	p.probed = true
	p.status.LastCheck = time.Now()
	if err == nil {
		p.status.Ready = true
		p.status.LastError = ""
		p.status.ConsecutiveFailures = 0
	} else {
		p.status.LastError = err.Error()
		p.status.ConsecutiveFailures++
		if p.status.ConsecutiveFailures >= p.cfg.FailureThreshold {
			p.status.Ready = false
		}
	}
	status := p.status
	p.mu.Unlock()

	if status.Ready {
		metrics.ProviderUp.WithLabelValues(p.name).Set(1)
	} else {
		metrics.ProviderUp.WithLabelValues(p.name).Set(0)
	}

	switch {
	case firstProbe && status.Ready:
		p.logger.Info("upstream ready", "provider", p.name)
	case err != nil && wasReady && !status.Ready:
		p.logger.Error("upstream marked not ready",
			"provider", p.name,
			"consecutive_failures", status.ConsecutiveFailures,
			"error", err,
		)
	case err != nil:
		p.logger.Warn("healthcheck probe failed",
			"provider", p.name,
			"consecutive_failures", status.ConsecutiveFailures,
			"error", err,
		)
	case !wasReady && status.Ready:
		p.logger.Info("upstream ready again", "provider", p.name)
	}
}

// Status returns the last recorded state. Before the first probe the
// upstream is reported not ready with ErrNotProbed.
func (p *Prober) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.probed {
		return Status{LastError: ErrNotProbed.Error()}
	}
	return p.status
}

// Ready reports whether traffic should be routed to this instance.
func (p *Prober) Ready() bool {
	return p.Status().Ready
}
