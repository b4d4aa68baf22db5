package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics contains Prometheus metrics for the audio engine backends.
// Labels carry the backend name (malgo, beep, null).
type EngineMetrics struct {
	registry *prometheus.Registry

	outputLevel    *prometheus.GaugeVec
	outputClipping *prometheus.GaugeVec
	activeVoices   *prometheus.GaugeVec
	deviceRunning  *prometheus.GaugeVec

	levelDrops     *prometheus.CounterVec
	deviceRestarts *prometheus.CounterVec

	collectors []prometheus.Collector
}

// NewEngineMetrics creates and registers new engine metrics
func NewEngineMetrics(registry *prometheus.Registry) (*EngineMetrics, error) {
	m := &EngineMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *EngineMetrics) initMetrics() error {
	m.outputLevel = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "soundpool_engine_output_level",
			Help: "Rendered output level scaled to 0-100",
		},
		[]string{"backend"},
	)

	m.outputClipping = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "soundpool_engine_output_clipping",
			Help: "Whether the rendered output is clipping (1 clipping, 0 clean)",
		},
		[]string{"backend"},
	)

	m.activeVoices = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "soundpool_engine_active_voices",
			Help: "Voices producing samples in the most recent render",
		},
		[]string{"backend"},
	)

	m.deviceRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "soundpool_engine_device_running",
			Help: "Whether the playback device is started (1 running, 0 stopped)",
		},
		[]string{"backend"},
	)

	m.levelDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundpool_engine_level_drops_total",
			Help: "Rendered frames dropped because the level monitor buffer was full",
		},
		[]string{"backend"},
	)

	m.deviceRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundpool_engine_device_restarts_total",
			Help: "Playback device restart attempts after an unexpected stop, by outcome (ok, failed)",
		},
		[]string{"backend", "outcome"},
	)

	m.collectors = []prometheus.Collector{
		m.outputLevel,
		m.outputClipping,
		m.activeVoices,
		m.deviceRunning,
		m.levelDrops,
		m.deviceRestarts,
	}

	return nil
}

// UpdateOutputLevel sets the output level and clipping gauges.
func (m *EngineMetrics) UpdateOutputLevel(backend string, level int, clipping bool) {
	m.outputLevel.WithLabelValues(backend).Set(float64(level))
	if clipping {
		m.outputClipping.WithLabelValues(backend).Set(1)
	} else {
		m.outputClipping.WithLabelValues(backend).Set(0)
	}
}

// UpdateActiveVoices sets the active voice gauge.
func (m *EngineMetrics) UpdateActiveVoices(backend string, voices int) {
	m.activeVoices.WithLabelValues(backend).Set(float64(voices))
}

// UpdateDeviceRunning sets the device state gauge.
func (m *EngineMetrics) UpdateDeviceRunning(backend string, running bool) {
	if running {
		m.deviceRunning.WithLabelValues(backend).Set(1)
	} else {
		m.deviceRunning.WithLabelValues(backend).Set(0)
	}
}

// RecordLevelDrop increments the dropped-frame counter.
func (m *EngineMetrics) RecordLevelDrop(backend string) {
	m.levelDrops.WithLabelValues(backend).Inc()
}

// RecordDeviceRestart increments the device restart counter for an outcome.
func (m *EngineMetrics) RecordDeviceRestart(backend, outcome string) {
	m.deviceRestarts.WithLabelValues(backend, outcome).Inc()
}

// Collect implements the prometheus.Collector interface.
func (m *EngineMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// Describe implements the prometheus.Collector interface.
func (m *EngineMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}
