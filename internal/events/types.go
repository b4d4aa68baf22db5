// Package events provides an asynchronous event bus that decouples error
// reporting and playback activity from notification, telemetry, and MQTT
// delivery, keeping the publishing side non-blocking.
package events

import (
	"time"
)

// ErrorEvent represents an error event that can be processed asynchronously.
// This interface allows the errors package to push events without creating
// a circular dependency.
type ErrorEvent interface {
	// GetComponent returns the component that generated the error
	GetComponent() string

	// GetCategory returns the error category for grouping
	GetCategory() string

	// GetContext returns additional context data for the error
	GetContext() map[string]any

	// GetTimestamp returns when the error occurred
	GetTimestamp() time.Time

	// GetError returns the underlying error
	GetError() error

	// GetMessage returns the error message
	GetMessage() string

	// IsReported returns whether this error has already been reported
	IsReported() bool

	// MarkReported marks the error as reported
	MarkReported()
}

// EventConsumer represents a consumer that processes error events
type EventConsumer interface {
	// Name returns the consumer name for identification
	Name() string

	// ProcessEvent processes a single error event
	ProcessEvent(event ErrorEvent) error

	// ProcessBatch processes multiple events at once (for efficiency)
	ProcessBatch(events []ErrorEvent) error

	// SupportsBatching returns true if this consumer supports batch processing
	SupportsBatching() bool
}

// PlaybackEventConsumer represents a consumer that also processes playback
// lifecycle events. Consumers implementing it receive playback events in
// addition to error events.
type PlaybackEventConsumer interface {
	EventConsumer

	// ProcessPlaybackEvent processes a single playback lifecycle event
	ProcessPlaybackEvent(event PlaybackEvent) error
}

// PlaybackEvent represents a playback lifecycle event emitted by a sound
// manager when a channel starts or finishes playing.
type PlaybackEvent interface {
	// GetManager returns the name of the manager that owns the channel
	GetManager() string

	// GetSound returns the catalog name of the sound being played
	GetSound() string

	// GetChannelID returns the pool channel the sound was assigned to
	GetChannelID() int

	// GetInstanceID returns the unique id of this playback instance
	GetInstanceID() string

	// GetKind returns the lifecycle kind (started, finished)
	GetKind() string

	// GetTimestamp returns when the event occurred
	GetTimestamp() time.Time

	// GetMessage returns a human-readable message
	GetMessage() string
}

// EventBusStats contains runtime statistics for monitoring
type EventBusStats struct {
	EventsReceived   uint64
	EventsSuppressed uint64
	EventsProcessed  uint64
	EventsDropped    uint64
	ConsumerErrors   uint64
	FastPathHits     uint64 // Number of times fast path was taken (no consumers)
}
