package soundcore

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/tphakala/soundpool-go/internal/errors"
	"github.com/tphakala/soundpool-go/internal/logging"
	"github.com/tphakala/soundpool-go/internal/observability/metrics"
)

// DefaultTickInterval is the tick period used when Run is given a
// non-positive interval. Completion timing is only as fine as the tick.
const DefaultTickInterval = 50 * time.Millisecond

// Preference key suffixes, namespaced by manager name so independent
// managers (music, sfx) do not collide in one store.
const (
	volumeKeySuffix = "_volume"
	muteKeySuffix   = "_muted"
)

// Manager is the public facade over one channel pool and its playback
// sessions. All methods are safe for concurrent use; a single mutex
// serializes every pool and session mutation, which is what preserves the
// completions-before-new-plays ordering. Observer callbacks and event sink
// publishes happen after the mutex is released, so observers may call back
// into the Manager.
type Manager struct {
	mu  sync.Mutex
	cfg Config

	provider EntryProvider
	backend  Backend
	prefs    PreferenceStore
	sink     EventSink

	pool   *channelPool
	sched  *completionScheduler
	player *player
	mute   *muteController

	observers []Observer

	logger  *slog.Logger
	metrics *metrics.SoundCoreMetrics
	nowFn   func() time.Time

	disabled bool
	closed   bool
}

// NewManager builds a manager over the given catalog provider and audio
// backend. On invalid input the returned manager is non-nil but disabled:
// every operation on it is a safe no-op, so a broken sound setup degrades
// to silence instead of failing the caller.
func NewManager(cfg Config, provider EntryProvider, backend Backend, opts ...Option) (*Manager, error) {
	m := &Manager{
		cfg:      cfg,
		provider: provider,
		backend:  backend,
		nowFn:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.cfg.ManagerName == "" {
		m.cfg.ManagerName = "default"
	}
	if m.logger == nil {
		m.logger = logging.ForService("soundcore")
		if m.logger == nil {
			m.logger = slog.Default()
		}
	}
	m.logger = m.logger.With("manager", m.cfg.ManagerName)
	m.cfg.MasterVolume = clampUnit(m.cfg.MasterVolume)

	if err := m.validateInputs(); err != nil {
		m.disabled = true
		m.logger.Error("sound manager disabled", "error", err)
		return m, err
	}

	pool, err := newChannelPool(&m.cfg, backend, m.logger, m.metrics)
	if err != nil {
		m.disabled = true
		m.logger.Error("sound manager disabled", "error", err)
		return m, err
	}
	m.pool = pool
	m.sched = newCompletionScheduler()
	m.player = newPlayer(m.cfg.ManagerName, provider, pool, m.sched, m.logger, m.metrics)
	m.mute = &muteController{stopOnMute: m.cfg.StopOnMute}

	// The stored mute state is restored directly: nothing is playing yet,
	// so no stop or pause policy needs to run.
	if m.prefs != nil {
		if v, ok := m.prefs.GetInt(m.cfg.ManagerName + muteKeySuffix); ok {
			m.mute.muted = v != 0
		}
	}

	m.updateGaugesLocked()
	m.logger.Info("sound manager ready",
		"backend", backend.Name(),
		"max_channels", m.cfg.MaxChannels,
		"prewarm_channels", m.cfg.PrewarmChannels,
		"strict_limit", m.cfg.StrictLimit,
		"stop_on_mute", m.cfg.StopOnMute,
		"muted", m.mute.muted)
	return m, nil
}

func (m *Manager) validateInputs() error {
	if m.provider == nil || m.backend == nil {
		return errors.Newf("sound manager %q is missing its %s", m.cfg.ManagerName, missingDependency(m.provider == nil, m.backend == nil)).
			Component(ComponentSoundCore).
			Category(errors.CategoryState).
			Context("operation", "new_manager").
			Context("manager", m.cfg.ManagerName).
			Build()
	}
	if m.cfg.MaxChannels < 1 {
		return errors.Newf("max_channels must be at least 1, got %d", m.cfg.MaxChannels).
			Component(ComponentSoundCore).
			Category(errors.CategoryConfiguration).
			Context("operation", "new_manager").
			Context("manager", m.cfg.ManagerName).
			Build()
	}
	if m.cfg.PrewarmChannels < 0 || m.cfg.PrewarmChannels > m.cfg.MaxChannels {
		return errors.Newf("prewarm_channels %d must be between 0 and max_channels %d", m.cfg.PrewarmChannels, m.cfg.MaxChannels).
			Component(ComponentSoundCore).
			Category(errors.CategoryConfiguration).
			Context("operation", "new_manager").
			Context("manager", m.cfg.ManagerName).
			Build()
	}
	return nil
}

func missingDependency(noProvider, noBackend bool) string {
	switch {
	case noProvider && noBackend:
		return "entry provider and audio backend"
	case noProvider:
		return "entry provider"
	default:
		return "audio backend"
	}
}

// Name returns the manager's configured name.
func (m *Manager) Name() string {
	return m.cfg.ManagerName
}

// Enabled reports whether the manager was constructed successfully and has
// not been closed.
func (m *Manager) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.disabled && !m.closed
}

// AddObserver registers an observer for playback notifications.
func (m *Manager) AddObserver(obs Observer) {
	if obs == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, obs)
}

// RemoveObserver unregisters a previously added observer.
func (m *Manager) RemoveObserver(obs Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = slices.DeleteFunc(m.observers, func(o Observer) bool {
		return o == obs
	})
}

// Play starts nameOrID as a non-overlapping sound. Repeating the call while
// the sound is live restarts it from zero on the same channel. Returns
// false if the sound is unknown, no channel could be produced, or the
// request was dropped by the mute policy.
func (m *Manager) Play(nameOrID string) bool {
	return m.playRequest(nameOrID, false)
}

// PlayOverlapping starts an independent instance of nameOrID, allowing any
// number of simultaneous instances of the same sound.
func (m *Manager) PlayOverlapping(nameOrID string) bool {
	return m.playRequest(nameOrID, true)
}

func (m *Manager) playRequest(nameOrID string, overlap bool) bool {
	m.mu.Lock()
	if m.unusableLocked() {
		m.mu.Unlock()
		return false
	}

	now := m.nowFn()
	notes := m.player.advance(now)
	notes = append(notes, m.player.cleanup()...)

	accepted := false
	switch {
	case nameOrID == "":
		m.player.recordPlay("invalid")
		m.logger.Warn("play request with empty sound name")
	default:
		entry, found := m.provider.Lookup(nameOrID)
		if !found {
			m.player.recordPlay("not_found")
			m.logger.Warn("unknown sound", "sound", nameOrID)
			break
		}

		switch m.mute.routePlay(overlap) {
		case routeDrop:
			m.player.recordPlay("dropped_muted")
			m.logger.Debug("play dropped while muted", "sound", entry.Name, "overlap", overlap)
		case routeStage:
			staged, err := m.player.playMuted(entry, overlap)
			notes = append(notes, staged...)
			if err != nil {
				m.logger.Error("failed to stage muted sound", "sound", entry.Name, "error", err)
				break
			}
			accepted = true
		default:
			played, err := m.player.play(entry, overlap, now)
			notes = append(notes, played...)
			if err != nil {
				m.logger.Error("failed to play sound", "sound", entry.Name, "overlap", overlap, "error", err)
				break
			}
			accepted = true
		}
	}

	m.updateGaugesLocked()
	observers := slices.Clone(m.observers)
	m.mu.Unlock()

	m.fanOut(observers, notes)
	return accepted
}

// Stop ends the non-overlapping session playing nameOrID. Stopping a sound
// that is not playing returns false and changes nothing.
func (m *Manager) Stop(nameOrID string) bool {
	m.mu.Lock()
	if m.unusableLocked() {
		m.mu.Unlock()
		return false
	}

	var (
		notes   []notification
		stopped bool
	)
	switch {
	case nameOrID == "":
		m.logger.Warn("stop request with empty sound name")
	default:
		name := nameOrID
		if entry, found := m.provider.Lookup(nameOrID); found {
			name = entry.Name
		}
		notes, stopped = m.player.stop(name)
	}

	m.updateGaugesLocked()
	observers := slices.Clone(m.observers)
	m.mu.Unlock()

	m.fanOut(observers, notes)
	return stopped
}

// StopAll ends every non-overlapping session. Overlapping instances run to
// their own completion.
func (m *Manager) StopAll() {
	m.mu.Lock()
	if m.unusableLocked() {
		m.mu.Unlock()
		return
	}
	notes := m.player.stopAll()
	m.updateGaugesLocked()
	observers := slices.Clone(m.observers)
	m.mu.Unlock()

	m.fanOut(observers, notes)
}

// PauseAll pauses every session, preserving elapsed positions. Pending
// completions stay armed and fire on schedule even while paused.
func (m *Manager) PauseAll() {
	m.mu.Lock()
	if m.unusableLocked() {
		m.mu.Unlock()
		return
	}
	m.player.pauseAll()
	m.mu.Unlock()
}

// ResumeAll resumes paused sessions from their preserved positions and
// starts staged sessions that never played.
func (m *Manager) ResumeAll() {
	m.mu.Lock()
	if m.unusableLocked() {
		m.mu.Unlock()
		return
	}
	notes := m.player.resumeAll(m.nowFn())
	m.updateGaugesLocked()
	observers := slices.Clone(m.observers)
	m.mu.Unlock()

	m.fanOut(observers, notes)
}

// SetVolume sets the master volume, clamped to [0, 1], rescaling every
// channel in flight. Setting a volume while muted implicitly unmutes.
func (m *Manager) SetVolume(v float64) {
	m.mu.Lock()
	if m.unusableLocked() {
		m.mu.Unlock()
		return
	}

	clamped := clampUnit(v)
	if clamped != v {
		m.logger.Debug("master volume clamped", "requested", v, "applied", clamped)
	}
	m.pool.setMasterVolume(clamped)
	notes := m.mute.unmute(m.player, m.nowFn())

	m.updateGaugesLocked()
	observers := slices.Clone(m.observers)
	m.mu.Unlock()

	m.fanOut(observers, notes)
}

// GetVolume returns the current master volume.
func (m *Manager) GetVolume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unusableLocked() {
		return 0
	}
	return m.pool.masterVolume
}

// Mute silences the manager according to its stop-on-mute policy: either
// all sessions are stopped for good, or paused for a later unmute.
func (m *Manager) Mute() {
	m.mu.Lock()
	if m.unusableLocked() {
		m.mu.Unlock()
		return
	}
	notes := m.mute.mute(m.player)
	m.updateGaugesLocked()
	observers := slices.Clone(m.observers)
	m.mu.Unlock()

	m.fanOut(observers, notes)
}

// Unmute lifts the mute. Under the pause policy the sessions resume; under
// the stop policy there is nothing left to resume.
func (m *Manager) Unmute() {
	m.mu.Lock()
	if m.unusableLocked() {
		m.mu.Unlock()
		return
	}
	notes := m.mute.unmute(m.player, m.nowFn())
	m.updateGaugesLocked()
	observers := slices.Clone(m.observers)
	m.mu.Unlock()

	m.fanOut(observers, notes)
}

// ToggleMute flips the mute state and returns the new state.
func (m *Manager) ToggleMute() bool {
	m.mu.Lock()
	if m.unusableLocked() {
		m.mu.Unlock()
		return false
	}
	var notes []notification
	if m.mute.muted {
		notes = m.mute.unmute(m.player, m.nowFn())
	} else {
		notes = m.mute.mute(m.player)
	}
	muted := m.mute.muted
	m.updateGaugesLocked()
	observers := slices.Clone(m.observers)
	m.mu.Unlock()

	m.fanOut(observers, notes)
	return muted
}

// IsMuted reports the current mute state.
func (m *Manager) IsMuted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unusableLocked() {
		return false
	}
	return m.mute.muted
}

// SaveVolumeSetting persists the current master volume under the manager's
// preference namespace.
func (m *Manager) SaveVolumeSetting() error {
	m.mu.Lock()
	if m.unusableLocked() || m.prefs == nil {
		m.mu.Unlock()
		return nil
	}
	volume := m.pool.masterVolume
	m.mu.Unlock()

	if err := m.prefs.SetFloat(m.cfg.ManagerName+volumeKeySuffix, volume); err != nil {
		return errors.New(err).
			Component(ComponentSoundCore).
			Category(errors.CategoryDatabase).
			Context("operation", "save_volume_setting").
			Context("manager", m.cfg.ManagerName).
			Build()
	}
	return nil
}

// LoadVolumeSetting applies the persisted master volume, if one was ever
// saved. Unlike SetVolume it does not touch the mute state. Returns whether
// a stored value was applied.
func (m *Manager) LoadVolumeSetting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unusableLocked() || m.prefs == nil {
		return false
	}
	v, ok := m.prefs.GetFloat(m.cfg.ManagerName + volumeKeySuffix)
	if !ok {
		return false
	}
	m.pool.setMasterVolume(clampUnit(v))
	m.updateGaugesLocked()
	return true
}

// SaveMuteSetting persists the current mute state under the manager's
// preference namespace.
func (m *Manager) SaveMuteSetting() error {
	m.mu.Lock()
	if m.unusableLocked() || m.prefs == nil {
		m.mu.Unlock()
		return nil
	}
	muted := 0
	if m.mute.muted {
		muted = 1
	}
	m.mu.Unlock()

	if err := m.prefs.SetInt(m.cfg.ManagerName+muteKeySuffix, muted); err != nil {
		return errors.New(err).
			Component(ComponentSoundCore).
			Category(errors.CategoryDatabase).
			Context("operation", "save_mute_setting").
			Context("manager", m.cfg.ManagerName).
			Build()
	}
	return nil
}

// LoadMuteSetting applies the persisted mute state, if one was ever saved,
// with full transition semantics: restoring a mute stops or pauses live
// sessions just as Mute would. Returns whether a stored value was found.
func (m *Manager) LoadMuteSetting() bool {
	m.mu.Lock()
	if m.unusableLocked() || m.prefs == nil {
		m.mu.Unlock()
		return false
	}
	v, ok := m.prefs.GetInt(m.cfg.ManagerName + muteKeySuffix)
	if !ok {
		m.mu.Unlock()
		return false
	}

	var notes []notification
	if v != 0 {
		notes = m.mute.mute(m.player)
	} else {
		notes = m.mute.unmute(m.player, m.nowFn())
	}
	m.updateGaugesLocked()
	observers := slices.Clone(m.observers)
	m.mu.Unlock()

	m.fanOut(observers, notes)
	return true
}

// Tick fires due completions and sweeps finished temporary channels. The
// daemon drives this through Run; tests call it directly with a synthetic
// clock.
func (m *Manager) Tick(now time.Time) {
	m.mu.Lock()
	if m.unusableLocked() {
		m.mu.Unlock()
		return
	}
	notes := m.player.advance(now)
	notes = append(notes, m.player.cleanup()...)
	m.updateGaugesLocked()
	observers := slices.Clone(m.observers)
	m.mu.Unlock()

	m.fanOut(observers, notes)
}

// Run ticks the manager at the given interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if m.disabled {
		m.logger.Debug("tick loop skipped, manager disabled")
		return
	}
	if interval <= 0 {
		interval = DefaultTickInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	m.logger.Debug("tick loop started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("tick loop stopped")
			return
		case <-ticker.C:
			m.Tick(m.nowFn())
		}
	}
}

// Snapshot returns a point-in-time view of the manager for status
// endpoints and debugging.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Manager:     m.cfg.ManagerName,
		StrictLimit: m.cfg.StrictLimit,
	}
	if m.backend != nil {
		snap.Backend = m.backend.Name()
	}
	if m.unusableLocked() {
		snap.Sessions = map[string]int{}
		return snap
	}

	snap.MasterVolume = m.pool.masterVolume
	snap.Muted = m.mute.muted
	snap.Channels = m.pool.snapshot()
	snap.Sessions = m.player.sessionSnapshot()
	snap.Pending = m.sched.pending()
	return snap
}

// Close stops all playback, emits stop notifications for every live
// assignment, and releases every output unit. The backend itself belongs
// to the caller and stays open.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.disabled || m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	notes := m.player.shutdownAll()
	m.pool.close()
	m.updateGaugesLocked()
	observers := slices.Clone(m.observers)
	m.mu.Unlock()

	m.fanOut(observers, notes)
	m.logger.Info("sound manager closed")
	return nil
}

func (m *Manager) unusableLocked() bool {
	return m.disabled || m.closed
}

func (m *Manager) updateGaugesLocked() {
	if m.metrics == nil || m.pool == nil {
		return
	}
	free, busy, temporary := m.pool.counts()
	m.metrics.UpdateChannelStates(m.cfg.ManagerName, free, busy, temporary)
	m.metrics.UpdatePendingCompletions(m.cfg.ManagerName, m.sched.pending())
	m.metrics.UpdateActiveSessions(m.cfg.ManagerName, len(m.player.sessions))
	m.metrics.UpdateMasterVolume(m.cfg.ManagerName, m.pool.masterVolume)
	m.metrics.UpdateMuted(m.cfg.ManagerName, m.mute.muted)
}

// fanOut delivers notifications synchronously, in order, to every observer
// and the event sink. Runs without the manager mutex held.
func (m *Manager) fanOut(observers []Observer, notes []notification) {
	for _, note := range notes {
		for _, obs := range observers {
			switch note.kind {
			case noteStart:
				obs.OnAudioStart(note.name)
			case noteComplete:
				obs.OnAudioComplete(note.name)
			case noteStop:
				obs.OnAudioStop(note.name)
			}
		}
		if m.sink != nil {
			m.sink.PublishPlayback(m.cfg.ManagerName, note.name, note.channelID, note.instanceID, note.kind.String())
		}
	}
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
