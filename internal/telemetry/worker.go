package telemetry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/soundpool-go/internal/errors"
	"github.com/tphakala/soundpool-go/internal/events"
)

// Worker implements events.EventConsumer and forwards error events to
// Sentry. A circuit breaker stops hammering Sentry during outages and a
// sliding-window rate limiter caps the event volume; the bus deduplicator
// has already collapsed repeats by the time events arrive here.
type Worker struct {
	enabled        bool
	batching       bool
	reporter       errors.TelemetryReporter
	circuitBreaker *CircuitBreaker
	rateLimiter    *RateLimiter

	eventsProcessed atomic.Uint64
	eventsDropped   atomic.Uint64
}

// WorkerConfig holds tuning for the telemetry worker.
type WorkerConfig struct {
	FailureThreshold  int
	RecoveryTimeout   time.Duration
	HalfOpenMaxEvents int

	RateLimitWindow    time.Duration
	RateLimitMaxEvents int

	BatchingEnabled bool
}

// DefaultWorkerConfig returns the default worker tuning.
func DefaultWorkerConfig() *WorkerConfig {
	return &WorkerConfig{
		FailureThreshold:   10,
		RecoveryTimeout:    60 * time.Second,
		HalfOpenMaxEvents:  5,
		RateLimitWindow:    time.Minute,
		RateLimitMaxEvents: 100,
		BatchingEnabled:    true,
	}
}

// NewWorker creates a telemetry worker. A nil config uses defaults.
func NewWorker(enabled bool, config *WorkerConfig) *Worker {
	if config == nil {
		config = DefaultWorkerConfig()
	}
	return &Worker{
		enabled:  enabled,
		reporter: NewReporter(enabled),
		circuitBreaker: &CircuitBreaker{
			state:  breakerClosed,
			config: config,
		},
		rateLimiter: &RateLimiter{
			window:     config.RateLimitWindow,
			maxEvents:  config.RateLimitMaxEvents,
			timeSource: realTimeSource{},
		},
		batching: config.BatchingEnabled,
	}
}

// Name returns the consumer name for event bus registration.
func (w *Worker) Name() string {
	return "telemetry"
}

// ProcessEvent reports a single error event to Sentry.
func (w *Worker) ProcessEvent(event events.ErrorEvent) error {
	if !w.enabled {
		return nil
	}
	if !w.circuitBreaker.Allow() {
		w.eventsDropped.Add(1)
		return nil
	}
	if !w.rateLimiter.Allow() {
		w.eventsDropped.Add(1)
		return nil
	}
	if event.IsReported() {
		return nil
	}

	w.reporter.ReportError(asEnhancedError(event))
	w.eventsProcessed.Add(1)
	w.circuitBreaker.RecordSuccess()
	return nil
}

// ProcessBatch reports events individually; Sentry has no batch ingest
// worth aggregating for at this volume.
func (w *Worker) ProcessBatch(errorEvents []events.ErrorEvent) error {
	var firstErr error
	for _, event := range errorEvents {
		if err := w.ProcessEvent(event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SupportsBatching reports whether the bus may hand this worker batches.
func (w *Worker) SupportsBatching() bool {
	return w.batching
}

// Stats returns processing counters.
func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		EventsProcessed: w.eventsProcessed.Load(),
		EventsDropped:   w.eventsDropped.Load(),
		CircuitState:    w.circuitBreaker.State(),
	}
}

// WorkerStats contains runtime counters for monitoring.
type WorkerStats struct {
	EventsProcessed uint64
	EventsDropped   uint64
	CircuitState    string
}

// asEnhancedError converts a bus event back into an EnhancedError for
// the reporter. Events published by the errors package already are one.
func asEnhancedError(event events.ErrorEvent) *errors.EnhancedError {
	if ee, ok := event.(*errors.EnhancedError); ok {
		return ee
	}
	var builder *errors.ErrorBuilder
	if err := event.GetError(); err != nil {
		builder = errors.New(err)
	} else {
		builder = errors.Newf("%s", event.GetMessage())
	}
	builder = builder.
		Component(event.GetComponent()).
		Category(errors.ErrorCategory(event.GetCategory()))
	for k, v := range event.GetContext() {
		builder = builder.Context(k, v)
	}
	return builder.Build()
}

const (
	breakerClosed   = "closed"
	breakerOpen     = "open"
	breakerHalfOpen = "half-open"
)

// CircuitBreaker trips after consecutive reporting failures and recovers
// through a limited half-open probe window.
type CircuitBreaker struct {
	mu              sync.Mutex
	state           string
	failures        int
	lastFailureTime time.Time
	successCount    int
	config          *WorkerConfig
}

// Allow reports whether an operation may proceed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerOpen:
		if time.Since(cb.lastFailureTime) > cb.config.RecoveryTimeout {
			cb.state = breakerHalfOpen
			cb.successCount = 0
			return true
		}
		return false
	case breakerHalfOpen:
		return cb.successCount < cb.config.HalfOpenMaxEvents
	default:
		return true
	}
}

// RecordSuccess resets the failure count and closes a half-open circuit
// once enough probes succeed.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state == breakerHalfOpen {
		cb.successCount++
		if cb.successCount >= cb.config.HalfOpenMaxEvents {
			cb.state = breakerClosed
		}
	}
}

// RecordFailure counts a failure and opens the circuit at the threshold.
// Any failure while half-open reopens immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureTime = time.Now()

	if cb.failures >= cb.config.FailureThreshold || cb.state == breakerHalfOpen {
		cb.state = breakerOpen
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// timeSource lets tests drive the rate limiter clock.
type timeSource interface {
	Now() time.Time
}

type realTimeSource struct{}

func (realTimeSource) Now() time.Time { return time.Now() }

// RateLimiter allows at most maxEvents within a sliding window.
type RateLimiter struct {
	mu         sync.Mutex
	window     time.Duration
	maxEvents  int
	eventTimes []time.Time
	timeSource timeSource
}

// Allow records and admits an event if the window has capacity.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.timeSource.Now()
	cutoff := now.Add(-rl.window)

	valid := rl.eventTimes[:0]
	for _, t := range rl.eventTimes {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	rl.eventTimes = valid

	if len(rl.eventTimes) >= rl.maxEvents {
		return false
	}
	rl.eventTimes = append(rl.eventTimes, now)
	return true
}
