package telemetry

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/soundpool-go/internal/errors"
)

// Reporter implements errors.TelemetryReporter on top of Sentry. It is
// registered with the errors package during Init so errors built outside
// the event bus path still get captured.
type Reporter struct {
	enabled bool
}

// NewReporter creates a Sentry-backed error reporter.
func NewReporter(enabled bool) *Reporter {
	return &Reporter{enabled: enabled}
}

// IsEnabled returns whether error reporting is active.
func (r *Reporter) IsEnabled() bool {
	return r.enabled
}

// ReportError captures an enhanced error as a Sentry event. Messages and
// context values are scrubbed before leaving the process, and the event
// carries a custom title plus fingerprint so Sentry groups by failure
// mode instead of by Go error type.
func (r *Reporter) ReportError(ee *errors.EnhancedError) {
	if !r.enabled || ee == nil || ee.IsReported() {
		return
	}

	scrubbedMessage := ScrubMessage(fmt.Sprintf("[%s] %s", ee.Category, ee.Error()))
	title := errorTitle(ee)
	level := errorLevel(ee.Category)

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_title", title)
		scope.SetTag("component", ee.GetComponent())
		scope.SetTag("category", string(ee.Category))
		scope.SetTag("error_type", fmt.Sprintf("%T", ee.Err))

		for key, value := range ee.GetContext() {
			scrubbed := value
			if s, ok := value.(string); ok {
				scrubbed = ScrubMessage(s)
			}
			scope.SetContext(key, map[string]any{"value": scrubbed})
		}

		scope.SetLevel(level)
		scope.SetFingerprint([]string{title, ee.GetComponent(), string(ee.Category)})

		event := sentry.NewEvent()
		event.Message = scrubbedMessage
		event.Level = level
		event.Exception = []sentry.Exception{{
			Type:  title,
			Value: scrubbedMessage,
		}}
		sentry.CaptureEvent(event)
	})

	ee.MarkReported()
}

// errorTitle builds a human-readable event title from component,
// category, and the operation context when present.
func errorTitle(ee *errors.EnhancedError) string {
	var parts []string

	if component := ee.GetComponent(); component != "" && component != errors.ComponentUnknown {
		parts = append(parts, titleCase(component))
	}

	if categoryTitle := formatCategoryTitle(ee.Category); categoryTitle != "" {
		parts = append(parts, categoryTitle)
	}

	if operation, ok := ee.GetContext()["operation"].(string); ok && operation != "" {
		parts = append(parts, formatOperationTitle(operation))
	}

	if len(parts) == 0 {
		return fmt.Sprintf("%T", ee.Err)
	}
	return strings.Join(parts, " ")
}

func formatCategoryTitle(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryEngineInit:
		return "Engine Initialization Error"
	case errors.CategoryPlayback:
		return "Playback Error"
	case errors.CategoryPoolExhausted:
		return "Pool Exhausted"
	case errors.CategoryScheduler:
		return "Completion Scheduler Error"
	case errors.CategoryCatalogLoad:
		return "Catalog Loading Error"
	case errors.CategoryDatabase:
		return "Database Error"
	case errors.CategoryFileIO:
		return "File I/O Error"
	case errors.CategoryFileParsing:
		return "File Parsing Error"
	case errors.CategoryConfiguration:
		return "Configuration Error"
	case errors.CategoryValidation:
		return "Validation Error"
	case errors.CategoryNetwork:
		return "Network Error"
	case errors.CategoryMQTTConnection:
		return "MQTT Connection Error"
	case errors.CategoryMQTTPublish:
		return "MQTT Publish Error"
	case errors.CategorySystem:
		return "System Error"
	default:
		return string(category)
	}
}

func formatOperationTitle(operation string) string {
	words := strings.Fields(strings.ReplaceAll(operation, "_", " "))
	for i, word := range words {
		words[i] = titleCase(word)
	}
	return strings.Join(words, " ")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// errorLevel maps an error category to a Sentry severity. Categories
// that break sound output entirely report as errors; transient delivery
// and I/O trouble reports as warnings.
func errorLevel(category errors.ErrorCategory) sentry.Level {
	switch category {
	case errors.CategoryEngineInit, errors.CategoryDatabase,
		errors.CategoryConfiguration, errors.CategorySystem,
		errors.CategoryCatalogLoad:
		return sentry.LevelError
	case errors.CategoryNetwork, errors.CategoryMQTTConnection,
		errors.CategoryMQTTPublish, errors.CategoryHTTP:
		return sentry.LevelWarning
	case errors.CategoryFileIO, errors.CategoryFileParsing,
		errors.CategoryPlayback, errors.CategoryScheduler,
		errors.CategoryPoolExhausted, errors.CategoryTimeout:
		return sentry.LevelWarning
	case errors.CategoryNotFound, errors.CategoryState, errors.CategoryLimit:
		return sentry.LevelWarning
	default:
		return sentry.LevelError
	}
}
