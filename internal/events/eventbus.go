package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/soundpool-go/internal/logging"
)

// EventBus provides asynchronous event processing with non-blocking guarantees
type EventBus struct {
	// Event channels
	errorChan    chan ErrorEvent
	playbackChan chan PlaybackEvent

	// Configuration
	bufferSize int
	workers    int

	// State management
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	initialized atomic.Bool
	running     atomic.Bool
	mu          sync.Mutex

	// Consumers
	consumers         []EventConsumer
	playbackConsumers []PlaybackEventConsumer

	// Duplicate suppression for error events
	dedup *ErrorDeduplicator

	// Metrics
	stats EventBusStats

	// Logging
	logger *slog.Logger
}

// Global event bus instance (lazily initialized)
var (
	globalEventBus *EventBus
	globalMutex    sync.Mutex

	// hasActiveConsumers lets publishers skip all work when nothing is
	// listening, without taking the bus lock.
	hasActiveConsumers atomic.Bool
)

// Config holds event bus configuration
type Config struct {
	BufferSize    int
	Workers       int
	Enabled       bool
	Deduplication *DeduplicationConfig
}

// DefaultConfig returns the default event bus configuration
func DefaultConfig() *Config {
	return &Config{
		BufferSize: 10000,
		Workers:    4,
		Enabled:    true,
	}
}

// newEventBus builds an event bus without touching the global instance.
// Workers are not started until the first consumer registers.
func newEventBus(parent context.Context, config *Config) *EventBus {
	ctx, cancel := context.WithCancel(parent)

	logger := logging.ForService("events")
	if logger == nil {
		logger = slog.Default().With("service", "events")
	}

	eb := &EventBus{
		errorChan:    make(chan ErrorEvent, config.BufferSize),
		playbackChan: make(chan PlaybackEvent, config.BufferSize),
		bufferSize:   config.BufferSize,
		workers:      config.Workers,
		ctx:          ctx,
		cancel:       cancel,
		consumers:    make([]EventConsumer, 0),
		dedup:        NewErrorDeduplicator(config.Deduplication, logger),
		logger:       logger,
	}
	eb.initialized.Store(true)

	return eb
}

// Initialize creates or returns the global event bus instance
func Initialize(config *Config) (*EventBus, error) {
	globalMutex.Lock()
	defer globalMutex.Unlock()

	// Return existing instance if already initialized
	if globalEventBus != nil {
		return globalEventBus, nil
	}

	// Use default config if none provided
	if config == nil {
		config = DefaultConfig()
	}

	// Skip initialization if disabled
	if !config.Enabled {
		return nil, nil
	}

	eb := newEventBus(context.Background(), config)
	globalEventBus = eb

	eb.logger.Info("event bus initialized",
		"buffer_size", config.BufferSize,
		"workers", config.Workers,
	)

	return eb, nil
}

// GetEventBus returns the global event bus instance
func GetEventBus() *EventBus {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	return globalEventBus
}

// IsInitialized returns true if the event bus has been initialized
func IsInitialized() bool {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	return globalEventBus != nil && globalEventBus.initialized.Load()
}

// HasActiveConsumers reports whether any consumer is registered on the
// global event bus. Publishers use it as a cheap fast-path check.
func HasActiveConsumers() bool {
	return hasActiveConsumers.Load()
}

// RegisterConsumer adds a new event consumer. The first registration starts
// the worker goroutines.
func (eb *EventBus) RegisterConsumer(consumer EventConsumer) error {
	if eb == nil {
		return fmt.Errorf("event bus not initialized")
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()

	// Check for duplicate
	for _, existing := range eb.consumers {
		if existing.Name() == consumer.Name() {
			return fmt.Errorf("consumer %s already registered", consumer.Name())
		}
	}

	eb.consumers = append(eb.consumers, consumer)
	if pc, ok := consumer.(PlaybackEventConsumer); ok {
		eb.playbackConsumers = append(eb.playbackConsumers, pc)
	}
	hasActiveConsumers.Store(true)

	eb.logger.Info("registered event consumer",
		"consumer", consumer.Name(),
		"supports_batching", consumer.SupportsBatching(),
	)

	// Start workers if this is the first consumer and not already running
	if len(eb.consumers) == 1 && !eb.running.Load() {
		eb.start()
	}

	return nil
}

// TryPublish attempts to publish an error event without blocking.
// Returns true if the event was accepted or suppressed as a known
// duplicate, false if dropped.
func (eb *EventBus) TryPublish(event ErrorEvent) bool {
	if eb == nil || !eb.initialized.Load() || !eb.running.Load() {
		return false
	}

	// Fast path when nothing is listening
	if !hasActiveConsumers.Load() {
		atomic.AddUint64(&eb.stats.FastPathHits, 1)
		return false
	}

	// Suppress duplicates within the dedup window. They count as handled
	// so callers do not fall back to direct reporting.
	if !eb.dedup.ShouldProcess(event) {
		atomic.AddUint64(&eb.stats.EventsSuppressed, 1)
		return true
	}

	// Non-blocking send
	select {
	case eb.errorChan <- event:
		atomic.AddUint64(&eb.stats.EventsReceived, 1)
		return true
	default:
		// Channel full, drop the event
		atomic.AddUint64(&eb.stats.EventsDropped, 1)

		// Log at debug level to avoid spam
		eb.logger.Debug("error event dropped due to full buffer",
			"component", event.GetComponent(),
			"category", event.GetCategory(),
		)
		return false
	}
}

// TryPublishPlayback attempts to publish a playback lifecycle event without
// blocking. Returns true if the event was accepted, false if dropped.
func (eb *EventBus) TryPublishPlayback(event PlaybackEvent) bool {
	if eb == nil || !eb.initialized.Load() || !eb.running.Load() {
		return false
	}

	eb.mu.Lock()
	hasPlayback := len(eb.playbackConsumers) > 0
	eb.mu.Unlock()

	if !hasPlayback {
		atomic.AddUint64(&eb.stats.FastPathHits, 1)
		return false
	}

	select {
	case eb.playbackChan <- event:
		atomic.AddUint64(&eb.stats.EventsReceived, 1)
		return true
	default:
		atomic.AddUint64(&eb.stats.EventsDropped, 1)
		eb.logger.Debug("playback event dropped due to full buffer",
			"manager", event.GetManager(),
			"sound", event.GetSound(),
		)
		return false
	}
}

// start begins the worker goroutines
func (eb *EventBus) start() {
	if eb.running.Swap(true) {
		return // Already running
	}

	eb.logger.Info("starting event bus workers", "count", eb.workers)

	for i := 0; i < eb.workers; i++ {
		eb.wg.Add(1)
		go eb.worker(i)
	}
}

// worker processes events from both channels
func (eb *EventBus) worker(id int) {
	defer eb.wg.Done()

	logger := eb.logger.With("worker_id", id)
	logger.Debug("worker started")

	for {
		select {
		case <-eb.ctx.Done():
			logger.Debug("worker stopping due to context cancellation")
			return

		case event, ok := <-eb.errorChan:
			if !ok {
				logger.Debug("worker stopping due to channel closure")
				return
			}
			eb.processErrorEvent(event, logger)

		case event, ok := <-eb.playbackChan:
			if !ok {
				logger.Debug("worker stopping due to channel closure")
				return
			}
			eb.processPlaybackEvent(event, logger)
		}
	}
}

// processErrorEvent sends the event to all registered consumers
func (eb *EventBus) processErrorEvent(event ErrorEvent, logger *slog.Logger) {
	eb.mu.Lock()
	consumers := make([]EventConsumer, len(eb.consumers))
	copy(consumers, eb.consumers)
	eb.mu.Unlock()

	for _, consumer := range consumers {
		// Process in a recovery wrapper to prevent panics
		func() {
			defer func() {
				if r := recover(); r != nil {
					atomic.AddUint64(&eb.stats.ConsumerErrors, 1)
					logger.Error("consumer panicked",
						"consumer", consumer.Name(),
						"panic", r,
						"component", event.GetComponent(),
						"category", event.GetCategory(),
					)
				}
			}()

			if err := consumer.ProcessEvent(event); err != nil {
				atomic.AddUint64(&eb.stats.ConsumerErrors, 1)
				logger.Error("consumer error",
					"consumer", consumer.Name(),
					"error", err,
					"component", event.GetComponent(),
					"category", event.GetCategory(),
				)
			} else {
				atomic.AddUint64(&eb.stats.EventsProcessed, 1)
			}
		}()
	}
}

// processPlaybackEvent sends the event to all registered playback consumers
func (eb *EventBus) processPlaybackEvent(event PlaybackEvent, logger *slog.Logger) {
	eb.mu.Lock()
	consumers := make([]PlaybackEventConsumer, len(eb.playbackConsumers))
	copy(consumers, eb.playbackConsumers)
	eb.mu.Unlock()

	for _, consumer := range consumers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					atomic.AddUint64(&eb.stats.ConsumerErrors, 1)
					logger.Error("playback consumer panicked",
						"consumer", consumer.Name(),
						"panic", r,
						"manager", event.GetManager(),
						"sound", event.GetSound(),
					)
				}
			}()

			if err := consumer.ProcessPlaybackEvent(event); err != nil {
				atomic.AddUint64(&eb.stats.ConsumerErrors, 1)
				logger.Error("playback consumer error",
					"consumer", consumer.Name(),
					"error", err,
					"manager", event.GetManager(),
					"sound", event.GetSound(),
				)
			} else {
				atomic.AddUint64(&eb.stats.EventsProcessed, 1)
			}
		}()
	}
}

// Shutdown gracefully shuts down the event bus
func (eb *EventBus) Shutdown(timeout time.Duration) error {
	if eb == nil || !eb.initialized.Load() {
		return nil
	}

	eb.logger.Info("shutting down event bus", "timeout", timeout)

	// Stop accepting new events
	eb.running.Store(false)
	hasActiveConsumers.Store(false)

	// Cancel context to signal workers
	eb.cancel()

	// Stop the dedup cleanup goroutine
	eb.dedup.Shutdown()

	// Wait for workers with timeout
	done := make(chan struct{})
	go func() {
		eb.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		eb.logger.Info("event bus shutdown complete")
		return nil
	case <-time.After(timeout):
		eb.logger.Warn("event bus shutdown timeout exceeded")
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

// GetStats returns current event bus statistics
func (eb *EventBus) GetStats() EventBusStats {
	if eb == nil {
		return EventBusStats{}
	}

	return EventBusStats{
		EventsReceived:   atomic.LoadUint64(&eb.stats.EventsReceived),
		EventsSuppressed: atomic.LoadUint64(&eb.stats.EventsSuppressed),
		EventsProcessed:  atomic.LoadUint64(&eb.stats.EventsProcessed),
		EventsDropped:    atomic.LoadUint64(&eb.stats.EventsDropped),
		ConsumerErrors:   atomic.LoadUint64(&eb.stats.ConsumerErrors),
		FastPathHits:     atomic.LoadUint64(&eb.stats.FastPathHits),
	}
}
