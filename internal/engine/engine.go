// Package engine provides the audio output backends behind the channel
// pools: a malgo device driving a software mixer, a pure-Go beep speaker
// path, and a silent clock-driven backend for headless runs. Units hand
// decoded PCM to the device; everything above them sees only the
// soundcore contracts.
package engine

import (
	"log/slog"

	"github.com/tphakala/soundpool-go/internal/conf"
	"github.com/tphakala/soundpool-go/internal/errors"
	"github.com/tphakala/soundpool-go/internal/logging"
	"github.com/tphakala/soundpool-go/internal/observability/metrics"
	"github.com/tphakala/soundpool-go/internal/soundcore"
)

const (
	// defaultSampleRate matches the most common clip rate so the default
	// path avoids resampling.
	defaultSampleRate = 44100
	defaultChannels   = 2
)

// Backend extends the core playback contract with the lifecycle the daemon
// drives: the backend outlives every manager and is closed last.
type Backend interface {
	soundcore.Backend
	Close() error
}

// LevelData is one output level sample, scaled to 0-100 with a clipping
// flag.
type LevelData struct {
	Level    int  `json:"level"`
	Clipping bool `json:"clipping"`
}

// LevelReporter is implemented by backends that meter their rendered
// output.
type LevelReporter interface {
	OutputLevel() LevelData
}

// New builds the backend selected by the playback settings. An empty
// engine name selects the silent backend so bare configurations stay
// runnable on machines without audio hardware.
func New(settings *conf.Settings, m *metrics.EngineMetrics, logger *slog.Logger) (Backend, error) {
	if logger == nil {
		logger = logging.ForService("engine")
		if logger == nil {
			logger = slog.Default()
		}
	}

	sampleRate := settings.Playback.SampleRate
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	channels := settings.Playback.Channels
	if channels != 1 && channels != 2 {
		channels = defaultChannels
	}

	switch settings.Playback.Engine {
	case "malgo":
		return newMalgoBackend(settings.Playback.Device, sampleRate, channels, m, logger)
	case "beep":
		return newBeepBackend(sampleRate, logger)
	case "", "null":
		return NewNullBackend(), nil
	default:
		return nil, errors.Newf("unsupported playback engine: %q", settings.Playback.Engine).
			Component(ComponentEngine).
			Category(errors.CategoryConfiguration).
			Context("engine", settings.Playback.Engine).
			Build()
	}
}

// pitchRate splits a pitch value into playback speed and direction. Zero
// means unset and plays forward at normal speed.
func pitchRate(pitch float64) (speed float64, reverse bool) {
	switch {
	case pitch == 0:
		return 1, false
	case pitch < 0:
		return -pitch, true
	default:
		return pitch, false
	}
}
