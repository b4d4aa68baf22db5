package engine

import (
	"encoding/binary"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"
	"unsafe"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/soundpool-go/internal/errors"
	"github.com/tphakala/soundpool-go/internal/observability/metrics"
	"github.com/tphakala/soundpool-go/internal/soundcore"
)

// restartDelay is how long a stopped device waits before the restart
// attempt, avoiding rapid restart loops.
const restartDelay = 100 * time.Millisecond

// MalgoBackend renders through a malgo playback device. The device data
// callback pulls one period at a time from the software mixer.
type MalgoBackend struct {
	logger  *slog.Logger
	metrics *metrics.EngineMetrics

	ctx    *malgo.AllocatedContext
	device *malgo.Device
	mixer  *mixer
	level  *levelMonitor

	// scratch is only touched by the single audio thread.
	scratch []float32

	mu     sync.Mutex
	closed bool
}

func newMalgoBackend(deviceName string, rate, channels int, m *metrics.EngineMetrics, logger *slog.Logger) (*MalgoBackend, error) {
	return newMalgoBackendWith(osBackends(), deviceName, rate, channels, m, logger)
}

// osBackends picks the native audio API per platform, leaving malgo to
// auto-select elsewhere.
func osBackends() []malgo.Backend {
	switch runtime.GOOS {
	case "linux":
		return []malgo.Backend{malgo.BackendAlsa}
	case "windows":
		return []malgo.Backend{malgo.BackendWasapi}
	case "darwin":
		return []malgo.Backend{malgo.BackendCoreaudio}
	default:
		return nil
	}
}

func newMalgoBackendWith(backends []malgo.Backend, deviceName string, rate, channels int, m *metrics.EngineMetrics, logger *slog.Logger) (*MalgoBackend, error) {
	b := &MalgoBackend{
		logger:  logger,
		metrics: m,
		mixer:   newMixer(rate, channels),
	}

	ctx, err := malgo.InitContext(backends, malgo.ContextConfig{}, func(message string) {
		logger.Debug("malgo: " + strings.TrimSpace(message))
	})
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentEngine).
			Category(errors.CategoryEngineInit).
			Context("operation", "init_context").
			Build()
	}
	b.ctx = ctx

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(rate)
	deviceConfig.Alsa.NoMMap = 1

	if deviceName != "" {
		id, err := b.findDevice(deviceName)
		if err != nil {
			b.teardownContext()
			return nil, err
		}
		deviceConfig.Playback.DeviceID = id
	}

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: b.onSendFrames,
		Stop: b.onDeviceStop,
	}
	device, err := malgo.InitDevice(ctx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		b.teardownContext()
		return nil, errors.New(err).
			Component(ComponentEngine).
			Category(errors.CategoryEngineInit).
			Context("operation", "init_device").
			Context("device", deviceName).
			Build()
	}
	b.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		b.teardownContext()
		return nil, errors.New(err).
			Component(ComponentEngine).
			Category(errors.CategoryEngineInit).
			Context("operation", "start_device").
			Build()
	}

	b.level = newLevelMonitor("malgo", rate, channels, m)
	if m != nil {
		m.UpdateDeviceRunning("malgo", true)
	}
	logger.Info("malgo playback device started",
		"sample_rate", rate,
		"channels", channels,
		"device", deviceName)
	return b, nil
}

// findDevice resolves a configured device name to its malgo id. Matching
// is a case-insensitive substring so "USB Audio" finds the full ALSA name.
func (b *MalgoBackend) findDevice(name string) (unsafe.Pointer, error) {
	infos, err := b.ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentEngine).
			Category(errors.CategoryEngineInit).
			Context("operation", "enumerate_devices").
			Build()
	}
	want := strings.ToLower(name)
	for i := range infos {
		if strings.Contains(strings.ToLower(infos[i].Name()), want) {
			return infos[i].ID.Pointer(), nil
		}
	}
	return nil, errors.Newf("output device %q not found", name).
		Component(ComponentEngine).
		Category(errors.CategoryNotFound).
		Context("device", name).
		Build()
}

// onSendFrames runs on the device's audio thread. It renders one period
// from the mixer, converts it to the device's 16-bit format, and taps the
// bytes for the level monitor.
func (b *MalgoBackend) onSendFrames(pOutputSample, pInputSamples []byte, framecount uint32) {
	needed := int(framecount) * b.mixer.channels
	if cap(b.scratch) < needed {
		b.scratch = make([]float32, needed)
	}
	buf := b.scratch[:needed]

	active := b.mixer.render(buf)

	for i, s := range buf {
		binary.LittleEndian.PutUint16(pOutputSample[i*2:], uint16(int16(s*32767)))
	}

	if b.level != nil {
		b.level.push(pOutputSample[:needed*2])
	}
	if b.metrics != nil {
		b.metrics.UpdateActiveVoices("malgo", active)
	}
}

// onDeviceStop fires when the device stops, normally during Close or
// unexpectedly on device loss. Unexpected stops get one restart attempt
// after a short delay.
func (b *MalgoBackend) onDeviceStop() {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return
	}
	if b.metrics != nil {
		b.metrics.UpdateDeviceRunning("malgo", false)
	}
	go func() {
		time.Sleep(restartDelay)
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.closed {
			return
		}
		if err := b.device.Start(); err != nil {
			b.logger.Error("failed to restart playback device", "error", err)
			if b.metrics != nil {
				b.metrics.RecordDeviceRestart("malgo", "failed")
			}
			return
		}
		b.logger.Info("playback device restarted")
		if b.metrics != nil {
			b.metrics.RecordDeviceRestart("malgo", "ok")
			b.metrics.UpdateDeviceRunning("malgo", true)
		}
	}()
}

// Name identifies the backend in snapshots and logs.
func (b *MalgoBackend) Name() string {
	return "malgo"
}

// NewOutputUnit allocates one mixer voice.
func (b *MalgoBackend) NewOutputUnit() (soundcore.OutputUnit, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.Newf("engine backend is closed").
			Component(ComponentEngine).
			Category(errors.CategoryState).
			Build()
	}
	return newMixerUnit(b.mixer), nil
}

// OutputLevel returns the most recent rendered level reading.
func (b *MalgoBackend) OutputLevel() LevelData {
	return b.level.level()
}

// Close stops the device and releases the malgo context. Safe to call
// more than once.
func (b *MalgoBackend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	if b.device != nil {
		_ = b.device.Stop()
		b.device.Uninit()
	}
	b.teardownContext()
	b.mu.Unlock()

	if b.level != nil {
		b.level.stop()
	}
	if b.metrics != nil {
		b.metrics.UpdateDeviceRunning("malgo", false)
	}
	b.logger.Info("malgo playback device closed")
	return nil
}

func (b *MalgoBackend) teardownContext() {
	if b.ctx == nil {
		return
	}
	_ = b.ctx.Uninit()
	b.ctx.Free()
	b.ctx = nil
}
