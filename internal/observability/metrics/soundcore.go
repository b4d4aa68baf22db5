// Package metrics provides custom Prometheus metrics for the soundpool components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SoundCoreMetrics contains Prometheus metrics for channel pool and playback
// session operations. All metrics are labelled with the manager name so
// independent pools (sfx, music) stay distinguishable.
type SoundCoreMetrics struct {
	registry *prometheus.Registry

	// Play path
	playRequests *prometheus.CounterVec
	stopRequests *prometheus.CounterVec
	completions  *prometheus.CounterVec

	// Pool behavior
	reclaims          *prometheus.CounterVec
	temporaryChannels *prometheus.CounterVec

	// Gauges sampled on every state change
	channelsFree   *prometheus.GaugeVec
	channelsBusy   *prometheus.GaugeVec
	channelsTemp   *prometheus.GaugeVec
	pendingTimers  *prometheus.GaugeVec
	activeSessions *prometheus.GaugeVec
	masterVolume   *prometheus.GaugeVec
	mutedState     *prometheus.GaugeVec

	collectors []prometheus.Collector
}

// NewSoundCoreMetrics creates and registers new soundcore metrics
func NewSoundCoreMetrics(registry *prometheus.Registry) (*SoundCoreMetrics, error) {
	m := &SoundCoreMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *SoundCoreMetrics) initMetrics() error {
	m.playRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundpool_play_requests_total",
			Help: "Play requests by manager and result (started, restarted, muted_staged, dropped_muted, not_found, exhausted, invalid)",
		},
		[]string{"manager", "result"},
	)

	m.stopRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundpool_stop_requests_total",
			Help: "Stop requests by manager and result (stopped, unknown)",
		},
		[]string{"manager", "result"},
	)

	m.completions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundpool_completions_total",
			Help: "Completion timer firings by manager and outcome (natural, stale)",
		},
		[]string{"manager", "outcome"},
	)

	m.reclaims = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundpool_channel_reclaims_total",
			Help: "Busy channels forcibly reclaimed under the strict-limit policy",
		},
		[]string{"manager"},
	)

	m.temporaryChannels = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundpool_temporary_channels_total",
			Help: "Temporary overflow channels by manager and action (created, destroyed)",
		},
		[]string{"manager", "action"},
	)

	m.channelsFree = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "soundpool_channels_free",
			Help: "Channels currently in the free queue",
		},
		[]string{"manager"},
	)

	m.channelsBusy = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "soundpool_channels_busy",
			Help: "Channels currently in the busy queue",
		},
		[]string{"manager"},
	)

	m.channelsTemp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "soundpool_channels_temporary",
			Help: "Temporary overflow channels currently alive",
		},
		[]string{"manager"},
	)

	m.pendingTimers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "soundpool_pending_completions",
			Help: "Scheduled completion timers not yet fired",
		},
		[]string{"manager"},
	)

	m.activeSessions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "soundpool_active_sessions",
			Help: "Non-overlap sessions currently mapped to a channel",
		},
		[]string{"manager"},
	)

	m.masterVolume = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "soundpool_master_volume",
			Help: "Current master volume (0.0 to 1.0)",
		},
		[]string{"manager"},
	)

	m.mutedState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "soundpool_muted",
			Help: "Mute state (1 muted, 0 unmuted)",
		},
		[]string{"manager"},
	)

	m.collectors = []prometheus.Collector{
		m.playRequests,
		m.stopRequests,
		m.completions,
		m.reclaims,
		m.temporaryChannels,
		m.channelsFree,
		m.channelsBusy,
		m.channelsTemp,
		m.pendingTimers,
		m.activeSessions,
		m.masterVolume,
		m.mutedState,
	}

	return nil
}

// RecordPlayRequest increments the play request counter for the given result.
func (m *SoundCoreMetrics) RecordPlayRequest(manager, result string) {
	m.playRequests.WithLabelValues(manager, result).Inc()
}

// RecordStopRequest increments the stop request counter for the given result.
func (m *SoundCoreMetrics) RecordStopRequest(manager, result string) {
	m.stopRequests.WithLabelValues(manager, result).Inc()
}

// RecordCompletion increments the completion counter for the given outcome.
func (m *SoundCoreMetrics) RecordCompletion(manager, outcome string) {
	m.completions.WithLabelValues(manager, outcome).Inc()
}

// RecordReclaim increments the forced-reclaim counter.
func (m *SoundCoreMetrics) RecordReclaim(manager string) {
	m.reclaims.WithLabelValues(manager).Inc()
}

// RecordTemporaryChannel increments the temporary channel counter for an action.
func (m *SoundCoreMetrics) RecordTemporaryChannel(manager, action string) {
	m.temporaryChannels.WithLabelValues(manager, action).Inc()
}

// UpdateChannelStates sets the free/busy/temporary channel gauges.
func (m *SoundCoreMetrics) UpdateChannelStates(manager string, free, busy, temporary int) {
	m.channelsFree.WithLabelValues(manager).Set(float64(free))
	m.channelsBusy.WithLabelValues(manager).Set(float64(busy))
	m.channelsTemp.WithLabelValues(manager).Set(float64(temporary))
}

// UpdatePendingCompletions sets the pending completion timer gauge.
func (m *SoundCoreMetrics) UpdatePendingCompletions(manager string, pending int) {
	m.pendingTimers.WithLabelValues(manager).Set(float64(pending))
}

// UpdateActiveSessions sets the active session gauge.
func (m *SoundCoreMetrics) UpdateActiveSessions(manager string, sessions int) {
	m.activeSessions.WithLabelValues(manager).Set(float64(sessions))
}

// UpdateMasterVolume sets the master volume gauge.
func (m *SoundCoreMetrics) UpdateMasterVolume(manager string, volume float64) {
	m.masterVolume.WithLabelValues(manager).Set(volume)
}

// UpdateMuted sets the mute state gauge.
func (m *SoundCoreMetrics) UpdateMuted(manager string, muted bool) {
	if muted {
		m.mutedState.WithLabelValues(manager).Set(1)
	} else {
		m.mutedState.WithLabelValues(manager).Set(0)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *SoundCoreMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// Describe implements the prometheus.Collector interface.
func (m *SoundCoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}
