package soundcore

import (
	"log/slog"
	"time"

	"github.com/tphakala/soundpool-go/internal/observability/metrics"
)

// Option is a functional option for configuring a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger for the manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithPreferenceStore sets the store used to persist volume and mute
// settings across runs.
func WithPreferenceStore(store PreferenceStore) Option {
	return func(m *Manager) {
		m.prefs = store
	}
}

// WithEventSink sets the sink playback lifecycle events are mirrored to.
func WithEventSink(sink EventSink) Option {
	return func(m *Manager) {
		m.sink = sink
	}
}

// WithMetrics sets the Prometheus metrics for the manager.
func WithMetrics(sm *metrics.SoundCoreMetrics) Option {
	return func(m *Manager) {
		m.metrics = sm
	}
}

// WithClock overrides the manager's time source. Tests use this to drive
// completion deadlines deterministically.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.nowFn = now
		}
	}
}

// WithObserver registers an observer at construction time.
func WithObserver(obs Observer) Option {
	return func(m *Manager) {
		if obs != nil {
			m.observers = append(m.observers, obs)
		}
	}
}
