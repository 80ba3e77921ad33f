// Package scheduler admits asynchronous units of work against a global
// concurrency limit and a fixed-window request budget, serving higher
// priorities first and equal priorities in enqueue order.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/blueberrycongee/llmgate/internal/metrics"
)

// TracerName is the instrumentation scope used for scheduler spans.
const TracerName = "github.com/blueberrycongee/llmgate/internal/scheduler"

// Config holds configuration for a Scheduler.
type Config struct {
	MaxRequestsPerMinute  int           // Admissions allowed per window (default: 60)
	MaxConcurrentRequests int           // In-flight limit (default: 5)
	Window                time.Duration // Rate window length (default: 1 minute)
	Logger                *slog.Logger  // Optional, defaults to slog.Default()
	Tracer                trace.Tracer  // Optional, defaults to the global provider
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxRequestsPerMinute:  60,
		MaxConcurrentRequests: 5,
		Window:                time.Minute,
	}
}

// Validate rejects negative limits. Zero values are filled with defaults.
func (c Config) Validate() error {
	if c.MaxRequestsPerMinute < 0 {
		return fmt.Errorf("%w: max requests per minute cannot be negative: %d", ErrInvalidConfig, c.MaxRequestsPerMinute)
	}
	if c.MaxConcurrentRequests < 0 {
		return fmt.Errorf("%w: max concurrent requests cannot be negative: %d", ErrInvalidConfig, c.MaxConcurrentRequests)
	}
	if c.Window < 0 {
		return fmt.Errorf("%w: window cannot be negative: %s", ErrInvalidConfig, c.Window)
	}
	return nil
}

// Stats is a point-in-time snapshot for observability. It is advisory and
// says nothing about the outcome of any particular request.
type Stats struct {
	QueueLength        int           `json:"queue_length"`
	ActiveRequests     int           `json:"active_requests"`
	RequestsThisWindow int           `json:"requests_this_window"`
	TimeUntilReset     time.Duration `json:"time_until_reset"`
	MaxConcurrent      int           `json:"max_concurrent_requests"`
	MaxPerWindow       int           `json:"max_requests_per_window"`
}

// Scheduler admits queued work subject to MaxConcurrentRequests and
// MaxRequestsPerMinute. A single loop goroutine makes every admission
// decision; enqueues, completions and window resets only signal it.
type Scheduler struct {
	mu            sync.Mutex
	pending       pendingQueue
	active        int
	windowCount   int
	windowStart   time.Time
	maxConcurrent int
	maxPerWindow  int
	window        time.Duration
	started       bool
	closed        bool

	wake      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time

	// onAdmit, if set, is called from the loop goroutine in admission order.
	onAdmit func(id string, priority int)
}

// New creates a scheduler. It does not admit anything until Start is called,
// so work enqueued before Start is ordered purely by priority.
func New(cfg Config) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	defaults := DefaultConfig()
	if cfg.MaxRequestsPerMinute == 0 {
		cfg.MaxRequestsPerMinute = defaults.MaxRequestsPerMinute
	}
	if cfg.MaxConcurrentRequests == 0 {
		cfg.MaxConcurrentRequests = defaults.MaxConcurrentRequests
	}
	if cfg.Window == 0 {
		cfg.Window = defaults.Window
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(TracerName)
	}

	s := &Scheduler{
		maxConcurrent: cfg.MaxConcurrentRequests,
		maxPerWindow:  cfg.MaxRequestsPerMinute,
		window:        cfg.Window,
		wake:          make(chan struct{}, 1),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		logger:        cfg.Logger,
		tracer:        cfg.Tracer,
		now:           time.Now,
	}
	s.windowStart = s.now()
	return s, nil
}

// Start launches the admission loop and the window timer. The loop stops when
// ctx is done or Close is called. Calling Start more than once is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.windowStart = s.now()
	maxConcurrent, maxPerWindow := s.maxConcurrent, s.maxPerWindow
	s.mu.Unlock()

	go s.loop(ctx)
	s.signal()

	s.logger.Info("scheduler started",
		"max_concurrent_requests", maxConcurrent,
		"max_requests_per_window", maxPerWindow,
		"window", s.window,
	)
}

// Enqueue submits work at the given priority and returns its future without
// blocking. If ctx ends while the request is still pending, the request is
// dropped and rejected with ErrRequestCancelled. After admission the same
// ctx is handed to work.
func Enqueue[T any](s *Scheduler, ctx context.Context, priority int, work func(context.Context) (T, error)) *Future[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	f := newFuture[T](uuid.NewString())
	if work == nil {
		var zero T
		f.settle(zero, ErrNilWork)
		return f
	}

	req := &request{
		id:         f.id,
		priority:   priority,
		enqueuedAt: s.now(),
		ctx:        ctx,
		run: func(ctx context.Context) (func(), error) {
			value, err := call(ctx, work)
			return func() { f.settle(value, err) }, err
		},
		reject: func(err error) {
			var zero T
			f.settle(zero, err)
		},
	}
	s.enqueue(req)
	return f
}

// Do enqueues work and waits for its result.
func Do[T any](s *Scheduler, ctx context.Context, priority int, work func(context.Context) (T, error)) (T, error) {
	return Enqueue(s, ctx, priority, work).Wait(ctx)
}

// call runs work, turning a panic into an error so the request still settles
// and its slot is released.
func call[T any](ctx context.Context, work func(context.Context) (T, error)) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduler: work panicked: %v", r)
		}
	}()
	return work(ctx)
}

func (s *Scheduler) enqueue(req *request) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.rejectAll([]*request{req}, ErrSchedulerClosed)
		return
	}
	// The hook runs on its own goroutine and takes s.mu, so it cannot
	// observe the request before it is in the queue.
	req.stopWatch = context.AfterFunc(req.ctx, func() {
		s.cancelPending(req)
	})
	s.pending.insert(req)
	s.publishLocked()
	s.mu.Unlock()

	s.logger.Debug("request enqueued", "request_id", req.id, "priority", req.priority)
	s.signal()
}

// cancelPending drops req if it has not been admitted yet.
func (s *Scheduler) cancelPending(req *request) {
	s.mu.Lock()
	removed := s.pending.remove(req)
	if removed {
		s.publishLocked()
	}
	s.mu.Unlock()

	if removed {
		s.logger.Debug("pending request cancelled", "request_id", req.id, "error", context.Cause(req.ctx))
		req.reject(fmt.Errorf("%w: %w", ErrRequestCancelled, context.Cause(req.ctx)))
		metrics.SchedulerSettled.WithLabelValues(metrics.OutcomeCancelled).Inc()
		s.signal()
	}
}

// signal asks the loop for an admission sweep. Signals coalesce.
func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.resetWindow()
			s.admit()
		case <-s.wake:
			s.admit()
		}
	}
}

// admit starts as many pending requests as both limits allow.
func (s *Scheduler) admit() {
	for {
		s.mu.Lock()
		if s.closed || s.pending.Len() == 0 ||
			s.active >= s.maxConcurrent || s.windowCount >= s.maxPerWindow {
			s.mu.Unlock()
			return
		}
		req := s.pending.popFront()
		if req.ctx.Err() != nil {
			// Context ended but the cancel hook has not run yet.
			s.publishLocked()
			s.mu.Unlock()
			req.detach()
			req.reject(fmt.Errorf("%w: %w", ErrRequestCancelled, context.Cause(req.ctx)))
			metrics.SchedulerSettled.WithLabelValues(metrics.OutcomeCancelled).Inc()
			continue
		}
		s.active++
		s.windowCount++
		s.publishLocked()
		s.mu.Unlock()

		req.detach()
		metrics.SchedulerAdmissions.Inc()
		if s.onAdmit != nil {
			s.onAdmit(req.id, req.priority)
		}
		go s.execute(req)
	}
}

func (s *Scheduler) execute(req *request) {
	waited := s.now().Sub(req.enqueuedAt)
	metrics.SchedulerQueueWait.Observe(waited.Seconds())

	ctx, span := s.tracer.Start(req.ctx, "scheduler.execute",
		trace.WithAttributes(
			attribute.String("llmgate.request_id", req.id),
			attribute.Int("llmgate.priority", req.priority),
			attribute.Float64("llmgate.queue_wait_seconds", waited.Seconds()),
		),
	)
	settle, err := req.run(ctx)
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	s.mu.Lock()
	s.active--
	s.publishLocked()
	s.mu.Unlock()

	settle()
	metrics.SchedulerSettled.WithLabelValues(outcome).Inc()
	if err != nil {
		s.logger.Debug("request failed", "request_id", req.id, "error", err)
	}
	s.signal()
}

func (s *Scheduler) resetWindow() {
	s.mu.Lock()
	s.windowCount = 0
	s.windowStart = s.now()
	queued := s.pending.Len()
	s.publishLocked()
	s.mu.Unlock()

	metrics.SchedulerWindowResets.Inc()
	s.logger.Debug("rate window reset", "queue_length", queued)
}

// publishLocked mirrors the counters into gauges. Caller holds s.mu.
func (s *Scheduler) publishLocked() {
	metrics.SchedulerQueueLength.Set(float64(s.pending.Len()))
	metrics.SchedulerActiveRequests.Set(float64(s.active))
	metrics.SchedulerWindowRequests.Set(float64(s.windowCount))
}

// Stats returns a snapshot of the scheduler state without changing it.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	untilReset := s.window - s.now().Sub(s.windowStart)
	if untilReset < 0 {
		untilReset = 0
	}
	return Stats{
		QueueLength:        s.pending.Len(),
		ActiveRequests:     s.active,
		RequestsThisWindow: s.windowCount,
		TimeUntilReset:     untilReset,
		MaxConcurrent:      s.maxConcurrent,
		MaxPerWindow:       s.maxPerWindow,
	}
}

// ClearQueue rejects every pending request with ErrQueueCleared and returns
// how many were dropped. In-flight requests are not affected.
func (s *Scheduler) ClearQueue() int {
	s.mu.Lock()
	cleared := s.pending.drain()
	s.publishLocked()
	s.mu.Unlock()

	s.rejectAll(cleared, ErrQueueCleared)
	if len(cleared) > 0 {
		s.logger.Info("scheduler queue cleared", "cancelled", len(cleared))
	}
	return len(cleared)
}

// SetLimits replaces both limits. Zero keeps the current value. Raising a
// limit takes effect immediately; lowering one never interrupts work that is
// already running.
func (s *Scheduler) SetLimits(maxConcurrent, maxPerWindow int) error {
	if maxConcurrent < 0 || maxPerWindow < 0 {
		return fmt.Errorf("%w: limits cannot be negative: concurrent=%d per_window=%d",
			ErrInvalidConfig, maxConcurrent, maxPerWindow)
	}

	s.mu.Lock()
	if maxConcurrent > 0 {
		s.maxConcurrent = maxConcurrent
	}
	if maxPerWindow > 0 {
		s.maxPerWindow = maxPerWindow
	}
	current, perWindow := s.maxConcurrent, s.maxPerWindow
	s.mu.Unlock()

	s.logger.Info("scheduler limits updated",
		"max_concurrent_requests", current,
		"max_requests_per_window", perWindow,
	)
	s.signal()
	return nil
}

// Close stops the admission loop and rejects pending requests with
// ErrSchedulerClosed. In-flight work keeps running and settles normally.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	started := s.started
	s.closed = true
	s.mu.Unlock()

	s.closeOnce.Do(func() {
		close(s.stop)
	})
	if started {
		<-s.done
	}
	s.shutdown()
	return nil
}

func (s *Scheduler) shutdown() {
	s.mu.Lock()
	s.closed = true
	pending := s.pending.drain()
	s.publishLocked()
	s.mu.Unlock()

	s.rejectAll(pending, ErrSchedulerClosed)
}

func (s *Scheduler) rejectAll(reqs []*request, err error) {
	for _, req := range reqs {
		req.detach()
		req.reject(err)
		metrics.SchedulerSettled.WithLabelValues(metrics.OutcomeCancelled).Inc()
	}
}
