package telemetry

import (
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/soundpool-go/internal/conf"
	"github.com/tphakala/soundpool-go/internal/errors"
)

func TestInitDisabledIsNoop(t *testing.T) {
	settings := &conf.Settings{Version: "1.0.0-test"}
	settings.Sentry.Enabled = false

	require.NoError(t, Init(settings))
	require.NoError(t, Init(nil))
}

func TestInitRequiresDSNWhenEnabled(t *testing.T) {
	settings := &conf.Settings{Version: "1.0.0-test"}
	settings.Sentry.Enabled = true
	settings.Sentry.DSN = ""

	err := Init(settings)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestApplyPrivacyFilters(t *testing.T) {
	t.Parallel()

	event := sentry.NewEvent()
	event.User = sentry.User{ID: "user-1", Email: "user@example.com"}
	event.ServerName = "livingroom-pi"
	event.Contexts["device"] = sentry.Context{"name": "pi4"}
	event.Contexts["os"] = sentry.Context{"name": "linux"}
	event.Contexts["runtime"] = sentry.Context{"name": "go"}
	event.Contexts["application"] = sentry.Context{"name": "soundpool-go"}
	event.Extra["component"] = "engine"
	event.Extra["error_type"] = "*errors.errorString"
	event.Extra["home_dir"] = "/home/alice"
	event.Tags = map[string]string{
		"hostname":    "livingroom-pi",
		"server_name": "livingroom-pi",
		"component":   "engine",
	}

	filtered := applyPrivacyFilters(event)

	assert.True(t, filtered.User.IsEmpty())
	assert.Empty(t, filtered.ServerName)

	assert.NotContains(t, filtered.Contexts, "device")
	assert.NotContains(t, filtered.Contexts, "os")
	assert.NotContains(t, filtered.Contexts, "runtime")
	assert.Contains(t, filtered.Contexts, "application")

	assert.NotContains(t, filtered.Extra, "home_dir")
	assert.Contains(t, filtered.Extra, "component")
	assert.Contains(t, filtered.Extra, "error_type")

	assert.NotContains(t, filtered.Tags, "hostname")
	assert.NotContains(t, filtered.Tags, "server_name")
	assert.Contains(t, filtered.Tags, "component")
}

func TestCollectPlatformInfo(t *testing.T) {
	t.Parallel()

	info := collectPlatformInfo()
	assert.NotEmpty(t, info.OS)
	assert.NotEmpty(t, info.Architecture)
	assert.NotEmpty(t, info.GoVersion)
	assert.Positive(t, info.NumCPU)
}
