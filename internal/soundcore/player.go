package soundcore

import (
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/tphakala/soundpool-go/internal/observability/metrics"
)

// noteKind identifies a playback lifecycle notification.
type noteKind int

const (
	noteStart noteKind = iota
	noteComplete
	noteStop
)

func (k noteKind) String() string {
	switch k {
	case noteStart:
		return "started"
	case noteComplete:
		return "finished"
	case noteStop:
		return "stopped"
	default:
		return "unknown"
	}
}

// notification is a pending observer callback. Player methods run under the
// Manager's mutex and return notifications instead of firing them, so the
// Manager can dispatch after unlocking and observers may safely call back in.
type notification struct {
	kind       noteKind
	name       string
	channelID  int
	instanceID string
}

// player owns the session map and drives assignments through the pool and
// the completion scheduler. Sessions exist only for non-overlapping
// playback: at most one live channel per sound name.
type player struct {
	managerName string
	provider    EntryProvider
	pool        *channelPool
	sched       *completionScheduler
	sessions    map[string]int

	newInstanceID func() string

	logger  *slog.Logger
	metrics *metrics.SoundCoreMetrics
}

func newPlayer(managerName string, provider EntryProvider, pool *channelPool, sched *completionScheduler, logger *slog.Logger, m *metrics.SoundCoreMetrics) *player {
	if logger == nil {
		logger = slog.Default()
	}
	return &player{
		managerName:   managerName,
		provider:      provider,
		pool:          pool,
		sched:         sched,
		sessions:      make(map[string]int),
		newInstanceID: uuid.NewString,
		logger:        logger,
		metrics:       m,
	}
}

func (pl *player) recordPlay(result string) {
	if pl.metrics != nil {
		pl.metrics.RecordPlayRequest(pl.managerName, result)
	}
}

// play assigns entry to a channel and starts audible output. Repeated
// non-overlap plays of the same name restart in place on the channel the
// session already holds; the channel identity never changes across repeats.
func (pl *player) play(entry SoundEntry, overlap bool, now time.Time) ([]notification, error) {
	if !overlap {
		if ch, ok := pl.sessionChannel(entry.Name); ok {
			return pl.restartInPlace(ch, entry, now)
		}
	}

	ch, notes, err := pl.acquireFor(entry, overlap)
	if err != nil {
		return notes, err
	}

	if err := ch.unit.Play(); err != nil {
		pl.pool.release(ch)
		pl.recordPlay("error")
		return notes, err
	}
	ch.started = true

	pl.scheduleCompletion(ch, now)
	if !overlap {
		pl.sessions[entry.Name] = ch.id
	}
	pl.recordPlay("started")
	notes = append(notes, notification{noteStart, ch.name, ch.id, ch.instanceID})
	return notes, nil
}

// playMuted stages entry on a channel without starting output. No start
// notification fires and no completion is scheduled; the assignment waits
// for resumeAll to start it from zero.
func (pl *player) playMuted(entry SoundEntry, overlap bool) ([]notification, error) {
	if !overlap {
		if ch, ok := pl.sessionChannel(entry.Name); ok {
			return pl.restageInPlace(ch, entry)
		}
	}

	ch, notes, err := pl.acquireFor(entry, overlap)
	if err != nil {
		return notes, err
	}

	if !overlap {
		pl.sessions[entry.Name] = ch.id
	}
	pl.recordPlay("muted_staged")
	return notes, nil
}

// restartInPlace stops and replays the channel's current session sound from
// zero. The fresh assignment bumps the generation, so the replaced
// completion could never fire against it even before rescheduling.
func (pl *player) restartInPlace(ch *channel, entry SoundEntry, now time.Time) ([]notification, error) {
	if err := ch.unit.Stop(); err != nil {
		pl.logger.Warn("failed to stop channel for restart",
			"manager", pl.managerName,
			"channel_id", ch.id,
			"sound", entry.Name,
			"error", err)
	}
	if err := ch.assign(entry, pl.newInstanceID(), false, pl.pool.masterVolume); err != nil {
		pl.recordPlay("error")
		return nil, err
	}
	if err := ch.unit.Play(); err != nil {
		pl.recordPlay("error")
		return nil, err
	}
	ch.started = true

	pl.scheduleCompletion(ch, now)
	pl.recordPlay("restarted")
	pl.logger.Debug("restarted in place",
		"manager", pl.managerName,
		"channel_id", ch.id,
		"sound", entry.Name)
	return []notification{{noteStart, ch.name, ch.id, ch.instanceID}}, nil
}

// restageInPlace reassigns a staged or playing session channel without
// starting output.
func (pl *player) restageInPlace(ch *channel, entry SoundEntry) ([]notification, error) {
	if err := ch.unit.Stop(); err != nil {
		pl.logger.Warn("failed to stop channel for restage",
			"manager", pl.managerName,
			"channel_id", ch.id,
			"sound", entry.Name,
			"error", err)
	}
	if err := ch.assign(entry, pl.newInstanceID(), false, pl.pool.masterVolume); err != nil {
		pl.recordPlay("error")
		return nil, err
	}
	pl.sched.cancel(ch.id)
	pl.recordPlay("muted_staged")
	return nil, nil
}

// acquireFor obtains a channel and assigns entry to it. When the strict
// policy reclaims a busy channel, the interrupted assignment is settled
// first: its completion is cancelled, its session entry removed, and a stop
// notification emitted.
func (pl *player) acquireFor(entry SoundEntry, overlap bool) (*channel, []notification, error) {
	ch, reclaimed, err := pl.pool.acquire()
	if err != nil {
		pl.recordPlay("exhausted")
		return nil, nil, err
	}

	var notes []notification
	if reclaimed {
		notes = append(notes, pl.settleInterrupted(ch))
	}

	if err := ch.assign(entry, pl.newInstanceID(), overlap, pl.pool.masterVolume); err != nil {
		pl.pool.release(ch)
		pl.recordPlay("error")
		return nil, notes, err
	}
	return ch, notes, nil
}

// settleInterrupted clears the bookkeeping of a reclaimed channel's old
// assignment and returns the stop notification for it.
func (pl *player) settleInterrupted(ch *channel) notification {
	pl.sched.cancel(ch.id)
	if !ch.overlap && pl.sessions[ch.name] == ch.id {
		delete(pl.sessions, ch.name)
	}
	if err := ch.unit.Stop(); err != nil {
		pl.logger.Warn("failed to stop reclaimed channel",
			"manager", pl.managerName,
			"channel_id", ch.id,
			"sound", ch.name,
			"error", err)
	}
	return notification{noteStop, ch.name, ch.id, ch.instanceID}
}

// scheduleCompletion arms the end-of-playback callback for the channel's
// current assignment. Looping assignments never complete on their own.
func (pl *player) scheduleCompletion(ch *channel, now time.Time) {
	if ch.loop {
		pl.sched.cancel(ch.id)
		return
	}
	pl.sched.schedule(ch.id, ch.generation, now.Add(ch.playbackLength()))
}

// stop ends the session playing name. Unknown names are a no-op, not an
// error.
func (pl *player) stop(name string) ([]notification, bool) {
	ch, ok := pl.sessionChannel(name)
	if !ok {
		if pl.metrics != nil {
			pl.metrics.RecordStopRequest(pl.managerName, "unknown")
		}
		return nil, false
	}

	note := pl.releaseSession(ch)
	if pl.metrics != nil {
		pl.metrics.RecordStopRequest(pl.managerName, "stopped")
	}
	return []notification{note}, true
}

// stopAll ends every session. Overlapping instances are not sessions and
// play on.
func (pl *player) stopAll() []notification {
	notes := make([]notification, 0, len(pl.sessions))
	for _, name := range pl.sessionNames() {
		ch, ok := pl.sessionChannel(name)
		if !ok {
			continue
		}
		notes = append(notes, pl.releaseSession(ch))
	}
	return notes
}

// releaseSession cancels the channel's completion, removes its session
// entry, and releases it to the pool.
func (pl *player) releaseSession(ch *channel) notification {
	pl.sched.cancel(ch.id)
	delete(pl.sessions, ch.name)
	note := notification{noteStop, ch.name, ch.id, ch.instanceID}
	pl.pool.release(ch)
	return note
}

// pauseAll pauses output on every session channel, preserving elapsed time.
// Session entries and pending completions are untouched: a completion that
// falls due while its channel is paused still fires and releases it.
func (pl *player) pauseAll() {
	for _, name := range pl.sessionNames() {
		ch, ok := pl.sessionChannel(name)
		if !ok || ch.paused || !ch.started {
			continue
		}
		if err := ch.unit.Pause(); err != nil {
			pl.logger.Warn("failed to pause channel",
				"manager", pl.managerName,
				"channel_id", ch.id,
				"sound", ch.name,
				"error", err)
			continue
		}
		ch.paused = true
	}
}

// resumeAll restores output on every session channel: paused assignments
// continue from their preserved position, staged assignments that never
// started play from zero and get their completion armed now.
func (pl *player) resumeAll(now time.Time) []notification {
	var notes []notification
	for _, name := range pl.sessionNames() {
		ch, ok := pl.sessionChannel(name)
		if !ok {
			continue
		}
		switch {
		case ch.paused:
			if err := ch.unit.Resume(); err != nil {
				pl.logger.Warn("failed to resume channel",
					"manager", pl.managerName,
					"channel_id", ch.id,
					"sound", ch.name,
					"error", err)
				continue
			}
			ch.paused = false
		case !ch.started:
			if err := ch.unit.Play(); err != nil {
				pl.logger.Warn("failed to start staged channel",
					"manager", pl.managerName,
					"channel_id", ch.id,
					"sound", ch.name,
					"error", err)
				continue
			}
			ch.started = true
			pl.scheduleCompletion(ch, now)
			notes = append(notes, notification{noteStart, ch.name, ch.id, ch.instanceID})
		}
	}
	return notes
}

// advance fires every completion due at now. A completion whose generation
// no longer matches its channel belonged to an earlier assignment and is
// dropped without touching the channel.
func (pl *player) advance(now time.Time) []notification {
	var notes []notification
	for _, pc := range pl.sched.due(now) {
		ch, ok := pl.pool.channels[pc.channelID]
		if !ok || ch.generation != pc.generation {
			if pl.metrics != nil {
				pl.metrics.RecordCompletion(pl.managerName, "stale")
			}
			pl.logger.Debug("dropping stale completion",
				"manager", pl.managerName,
				"channel_id", pc.channelID,
				"generation", pc.generation)
			continue
		}

		ch.markFinished()
		if !ch.overlap && pl.sessions[ch.name] == ch.id {
			delete(pl.sessions, ch.name)
		}
		notes = append(notes, notification{noteComplete, ch.name, ch.id, ch.instanceID})
		if pl.metrics != nil {
			pl.metrics.RecordCompletion(pl.managerName, "natural")
		}
		if ch.temporary {
			// left in the finished state for the cleanup sweep
			if err := ch.unit.Stop(); err != nil {
				pl.logger.Warn("failed to stop finished temporary channel",
					"manager", pl.managerName,
					"channel_id", ch.id,
					"error", err)
			}
		} else {
			pl.pool.release(ch)
		}
	}
	return notes
}

// cleanup sweeps finished temporary channels out of the pool. For channels
// the engine finished before their completion fired, the session and
// completion are settled here and a completion notification is emitted.
func (pl *player) cleanup() []notification {
	var notes []notification
	for _, reaped := range pl.pool.cleanupFinished() {
		pl.sched.cancel(reaped.channelID)
		if !reaped.overlap && pl.sessions[reaped.name] == reaped.channelID {
			delete(pl.sessions, reaped.name)
		}
		notes = append(notes, notification{noteComplete, reaped.name, reaped.channelID, reaped.instanceID})
		if pl.metrics != nil {
			pl.metrics.RecordCompletion(pl.managerName, "natural")
		}
	}
	return notes
}

// shutdownAll stops every busy channel, sessions and overlapping instances
// alike, emitting stop notifications for each before the pool is torn down.
func (pl *player) shutdownAll() []notification {
	ids := make([]int, 0, len(pl.pool.channels))
	for id, ch := range pl.pool.channels {
		if ch.state != stateFree {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	var notes []notification
	for _, id := range ids {
		ch := pl.pool.channels[id]
		pl.sched.cancel(ch.id)
		if ch.state == stateFinished {
			pl.pool.release(ch)
			continue
		}
		if !ch.overlap {
			delete(pl.sessions, ch.name)
		}
		notes = append(notes, notification{noteStop, ch.name, ch.id, ch.instanceID})
		pl.pool.release(ch)
	}
	return notes
}

// sessionChannel resolves a session entry to its live channel, dropping the
// entry if the channel no longer carries that sound.
func (pl *player) sessionChannel(name string) (*channel, bool) {
	id, ok := pl.sessions[name]
	if !ok {
		return nil, false
	}
	ch, ok := pl.pool.channels[id]
	if !ok || ch.state == stateFree || ch.name != name {
		pl.logger.Warn("session entry out of sync, dropping",
			"manager", pl.managerName,
			"sound", name,
			"channel_id", id)
		delete(pl.sessions, name)
		return nil, false
	}
	return ch, true
}

// sessionNames returns the mapped names in stable order so bulk operations
// behave deterministically.
func (pl *player) sessionNames() []string {
	names := make([]string, 0, len(pl.sessions))
	for name := range pl.sessions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// sessionSnapshot copies the session map for status reporting.
func (pl *player) sessionSnapshot() map[string]int {
	out := make(map[string]int, len(pl.sessions))
	for name, id := range pl.sessions {
		out[name] = id
	}
	return out
}
