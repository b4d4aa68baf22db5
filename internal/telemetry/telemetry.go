// Package telemetry provides opt-in, privacy-compliant error tracking
// through Sentry. Nothing is sent unless the user explicitly enables it,
// and every outgoing event passes a scrubbing filter that strips
// hostnames, user paths, and credentials.
package telemetry

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/soundpool-go/internal/conf"
	"github.com/tphakala/soundpool-go/internal/errors"
	"github.com/tphakala/soundpool-go/internal/logging"
)

// PlatformInfo holds privacy-safe platform information for telemetry.
// No hostnames, usernames, or addresses.
type PlatformInfo struct {
	OS           string `json:"os"`
	Architecture string `json:"arch"`
	NumCPU       int    `json:"num_cpu"`
	GoVersion    string `json:"go_version"`
}

func collectPlatformInfo() PlatformInfo {
	return PlatformInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		NumCPU:       runtime.NumCPU(),
		GoVersion:    runtime.Version(),
	}
}

func serviceLogger() *slog.Logger {
	logger := logging.ForService("telemetry")
	if logger == nil {
		logger = slog.Default().With("service", "telemetry")
	}
	return logger
}

// Init initializes the Sentry SDK when telemetry is enabled in settings.
// Disabled telemetry is not an error; Init simply logs and returns.
// On success the global error reporter is registered so errors built
// outside the event bus path still reach Sentry.
func Init(settings *conf.Settings) error {
	logger := serviceLogger()

	if settings == nil || !settings.Sentry.Enabled {
		logger.Info("telemetry is disabled (opt-in required)")
		return nil
	}

	if settings.Sentry.DSN == "" {
		return errors.Newf("sentry DSN is required when telemetry is enabled").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:        settings.Sentry.DSN,
		SampleRate: 1.0,
		Debug:      false,

		// Privacy settings: no stack traces with local paths, no
		// hostname leakage through the server name.
		AttachStacktrace: false,
		Environment:      "production",
		ServerName:       "",

		Release: fmt.Sprintf("soundpool-go@%s", settings.Version),

		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	}); err != nil {
		return errors.New(err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	systemID := resolveSystemID(logger)
	configureScope(settings, systemID)

	errors.SetTelemetryReporter(NewReporter(true))

	logger.Info("telemetry initialized",
		"system_id", systemID,
		"version", settings.Version,
		"platform", runtime.GOOS,
		"arch", runtime.GOARCH,
	)
	return nil
}

// resolveSystemID loads or creates the anonymous install identifier.
// Telemetry still works without one.
func resolveSystemID(logger *slog.Logger) string {
	paths, err := conf.GetDefaultConfigPaths()
	if err != nil || len(paths) == 0 {
		logger.Warn("no config directory for system id", "error", err)
		return ""
	}
	id, err := LoadOrCreateSystemID(paths[0])
	if err != nil {
		logger.Warn("failed to load or create system id", "error", err)
		return ""
	}
	return id
}

func configureScope(settings *conf.Settings, systemID string) {
	platform := collectPlatformInfo()

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		if systemID != "" {
			scope.SetTag("system_id", systemID)
		}
		scope.SetTag("os", platform.OS)
		scope.SetTag("arch", platform.Architecture)

		scope.SetContext("application", map[string]any{
			"name":      "soundpool-go",
			"version":   settings.Version,
			"system_id": systemID,
		})
		scope.SetContext("platform", map[string]any{
			"os":           platform.OS,
			"architecture": platform.Architecture,
			"num_cpu":      platform.NumCPU,
			"go_version":   platform.GoVersion,
		})
	})
}

// applyPrivacyFilters strips identifying data from an outgoing event.
// User and server identification always go; contexts and extras are
// reduced to an allowlist.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	return event
}

// Flush blocks until buffered events are sent or the timeout expires.
// Safe to call when telemetry was never initialized.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}
