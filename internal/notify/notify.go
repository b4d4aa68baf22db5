// Package notify pushes error notifications to external services through
// shoutrrr. A single Consumer subscribes to the event bus, filters error
// events by priority, and forwards the ones that clear the configured
// threshold to every configured notification URL.
package notify

import (
	"log/slog"

	"github.com/tphakala/soundpool-go/internal/errors"
	"github.com/tphakala/soundpool-go/internal/logging"
)

// Priority represents the urgency level of a notification.
type Priority string

const (
	// PriorityCritical requires immediate attention
	PriorityCritical Priority = "critical"
	// PriorityHigh should be addressed soon
	PriorityHigh Priority = "high"
	// PriorityMedium is informational but important
	PriorityMedium Priority = "medium"
	// PriorityLow is general information
	PriorityLow Priority = "low"
)

// priorityRank orders priorities for threshold comparison.
var priorityRank = map[Priority]int{
	PriorityLow:      0,
	PriorityMedium:   1,
	PriorityHigh:     2,
	PriorityCritical: 3,
}

// ParsePriority converts a configuration string into a Priority.
func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if _, ok := priorityRank[p]; !ok {
		return "", errors.Newf("invalid notification priority %q, expected low, medium, high, or critical", s).
			Component("notify").
			Category(errors.CategoryValidation).
			Build()
	}
	return p, nil
}

// AtLeast reports whether p meets or exceeds the threshold priority.
func (p Priority) AtLeast(threshold Priority) bool {
	return priorityRank[p] >= priorityRank[threshold]
}

// categoryPriority maps an error category to a notification priority.
// Categories that stop sound output entirely rank critical; operational
// noise like validation failures stays low so it never pages anyone.
func categoryPriority(category string) Priority {
	switch errors.ErrorCategory(category) {
	case errors.CategoryEngineInit:
		return PriorityCritical
	case errors.CategoryDatabase:
		return PriorityCritical
	case errors.CategorySystem, errors.CategoryConfiguration, errors.CategoryCatalogLoad:
		return PriorityHigh
	case errors.CategoryNetwork, errors.CategoryMQTTConnection, errors.CategoryMQTTPublish:
		return PriorityMedium
	case errors.CategoryFileIO, errors.CategoryFileParsing, errors.CategoryPlayback, errors.CategoryScheduler:
		return PriorityMedium
	case errors.CategoryValidation, errors.CategoryNotFound, errors.CategoryState:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

func serviceLogger() *slog.Logger {
	logger := logging.ForService("notify")
	if logger == nil {
		logger = slog.Default().With("service", "notify")
	}
	return logger
}
