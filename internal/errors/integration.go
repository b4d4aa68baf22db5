// Package errors - event bus and telemetry integration hooks
package errors

import (
	"sync/atomic"
)

// EventPublisher is an interface for publishing error events.
// It allows the errors package to hand errors to the events package
// without importing it, avoiding a circular dependency.
type EventPublisher interface {
	TryPublish(event any) bool
}

// TelemetryReporter is an interface for reporting errors to telemetry systems
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

var (
	globalEventPublisher    atomic.Pointer[EventPublisher]
	globalTelemetryReporter atomic.Pointer[TelemetryReporter]

	// hasActiveReporting gates the expensive detection work in Build.
	// It is true while either an event publisher or telemetry reporter is set.
	hasActiveReporting atomic.Bool
)

// SetEventPublisher sets the global event publisher.
// Called by the events package during initialization.
func SetEventPublisher(publisher EventPublisher) {
	if publisher == nil {
		globalEventPublisher.Store(nil)
	} else {
		globalEventPublisher.Store(&publisher)
	}
	updateReportingState()
}

// SetTelemetryReporter sets the global telemetry reporter.
// Called by the telemetry package when error capture is enabled.
func SetTelemetryReporter(reporter TelemetryReporter) {
	if reporter == nil {
		globalTelemetryReporter.Store(nil)
	} else {
		globalTelemetryReporter.Store(&reporter)
	}
	updateReportingState()
}

func updateReportingState() {
	hasActiveReporting.Store(globalEventPublisher.Load() != nil || globalTelemetryReporter.Load() != nil)
}

// reportToTelemetry hands a freshly built error to whichever sinks are active.
// The event bus takes priority; its consumers include the telemetry worker,
// so direct reporting is only a fallback for bus-less setups.
func reportToTelemetry(ee *EnhancedError) {
	if !hasActiveReporting.Load() {
		return
	}

	if publisherPtr := globalEventPublisher.Load(); publisherPtr != nil && *publisherPtr != nil {
		(*publisherPtr).TryPublish(ee)
		return
	}

	if reporterPtr := globalTelemetryReporter.Load(); reporterPtr != nil && *reporterPtr != nil {
		reporter := *reporterPtr
		if reporter.IsEnabled() {
			reporter.ReportError(ee)
		}
	}
}
