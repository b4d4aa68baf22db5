package soundcore

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/tphakala/soundpool-go/internal/errors"
	"github.com/tphakala/soundpool-go/internal/observability/metrics"
)

// reapedAssignment carries what the cleanup sweep found on a temporary
// channel the engine finished on its own, so the caller can settle the
// session and pending completion before the channel is destroyed.
type reapedAssignment struct {
	channelID  int
	name       string
	instanceID string
	overlap    bool
}

// channelPool owns the channel arena and the free/busy bookkeeping for one
// manager. It is not safe for concurrent use; the Manager's mutex
// serializes all access.
//
// Invariant: every channel in the arena is in exactly one of freeQueue or
// busyQueue between operations. Queue order is acquisition order, oldest
// first, which is what strict-limit reclamation keys on.
type channelPool struct {
	managerName  string
	backend      Backend
	maxChannels  int
	strictLimit  bool
	masterVolume float64

	channels  map[int]*channel
	freeQueue []int
	busyQueue []int
	nextID    int

	logger  *slog.Logger
	metrics *metrics.SoundCoreMetrics
}

func newChannelPool(cfg *Config, backend Backend, logger *slog.Logger, m *metrics.SoundCoreMetrics) (*channelPool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	p := &channelPool{
		managerName:  cfg.ManagerName,
		backend:      backend,
		maxChannels:  cfg.MaxChannels,
		strictLimit:  cfg.StrictLimit,
		masterVolume: cfg.MasterVolume,
		channels:     make(map[int]*channel, cfg.MaxChannels),
		logger:       logger,
		metrics:      m,
	}

	for i := 0; i < cfg.PrewarmChannels; i++ {
		ch, err := p.createChannel(false)
		if err != nil {
			p.close()
			return nil, err
		}
		p.freeQueue = append(p.freeQueue, ch.id)
	}

	p.logger.Debug("channel pool created",
		"manager", p.managerName,
		"prewarmed", cfg.PrewarmChannels,
		"max_channels", p.maxChannels,
		"strict_limit", p.strictLimit)

	return p, nil
}

// createChannel allocates an output unit and registers the new channel in
// the arena. The caller enqueues it as free or busy.
func (p *channelPool) createChannel(temporary bool) (*channel, error) {
	unit, err := p.backend.NewOutputUnit()
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentSoundCore).
			Category(errors.CategoryPoolExhausted).
			Context("operation", "create_channel").
			Context("manager", p.managerName).
			Build()
	}

	ch := &channel{
		id:        p.nextID,
		unit:      unit,
		state:     stateFree,
		temporary: temporary,
	}
	p.nextID++
	p.channels[ch.id] = ch

	if temporary && p.metrics != nil {
		p.metrics.RecordTemporaryChannel(p.managerName, "created")
	}
	return ch, nil
}

// acquire returns a channel for a new assignment, moving it to the back of
// the busy queue. When the strict-limit policy reclaims a busy channel, the
// previous assignment is left intact on it and reclaimed is true so the
// caller can settle the interrupted playback before reassigning.
func (p *channelPool) acquire() (ch *channel, reclaimed bool, err error) {
	if id, ok := p.popFree(); ok {
		ch = p.channels[id]
		p.busyQueue = append(p.busyQueue, id)
		return ch, false, nil
	}

	if p.strictLimit {
		return p.reclaimOldest()
	}

	ch, err = p.createChannel(len(p.channels) >= p.maxChannels)
	if err != nil {
		return nil, false, err
	}
	p.busyQueue = append(p.busyQueue, ch.id)
	return ch, false, nil
}

// reclaimOldest interrupts the oldest busy channel and hands it to the new
// request. An empty busy queue here means the pool was never pre-warmed,
// which is a configuration error, not a transient condition.
func (p *channelPool) reclaimOldest() (*channel, bool, error) {
	if len(p.busyQueue) == 0 {
		return nil, false, errors.Newf("channel pool %q has no channels: prewarm_channels must be at least 1 with strict_limit", p.managerName).
			Component(ComponentSoundCore).
			Category(errors.CategoryConfiguration).
			Context("operation", "acquire_channel").
			Context("manager", p.managerName).
			Build()
	}

	id := p.busyQueue[0]
	p.busyQueue = append(p.busyQueue[1:], id)
	ch := p.channels[id]

	p.logger.Debug("reclaiming oldest busy channel",
		"manager", p.managerName,
		"channel_id", id,
		"interrupted_sound", ch.name)
	if p.metrics != nil {
		p.metrics.RecordReclaim(p.managerName)
	}
	return ch, true, nil
}

func (p *channelPool) popFree() (int, bool) {
	if len(p.freeQueue) == 0 {
		return 0, false
	}
	id := p.freeQueue[0]
	p.freeQueue = p.freeQueue[1:]
	return id, true
}

// release stops and clears the channel. Temporary channels, and channels
// beyond maxChannels, are destroyed rather than recycled.
func (p *channelPool) release(ch *channel) {
	if err := ch.unit.Stop(); err != nil {
		p.logger.Warn("failed to stop output unit on release",
			"manager", p.managerName,
			"channel_id", ch.id,
			"error", err)
	}
	ch.clear()

	if ch.temporary || len(p.channels) > p.maxChannels {
		p.destroy(ch)
		return
	}

	p.removeFromBusy(ch.id)
	p.freeQueue = append(p.freeQueue, ch.id)
}

// destroy closes the channel's unit and drops it from the arena.
func (p *channelPool) destroy(ch *channel) {
	if err := ch.unit.Close(); err != nil {
		p.logger.Warn("failed to close output unit",
			"manager", p.managerName,
			"channel_id", ch.id,
			"error", err)
	}
	p.removeFromBusy(ch.id)
	p.removeFromFree(ch.id)
	delete(p.channels, ch.id)

	if ch.temporary && p.metrics != nil {
		p.metrics.RecordTemporaryChannel(p.managerName, "destroyed")
	}
}

// cleanupFinished destroys temporary channels whose playback has ended.
// Channels already marked finished were settled when their completion
// fired; busy channels the engine finished on its own are returned so the
// caller can settle sessions and pending completions.
func (p *channelPool) cleanupFinished() []reapedAssignment {
	var ids []int
	for id, ch := range p.channels {
		if !ch.temporary {
			continue
		}
		if ch.state == stateFinished || p.engineFinished(ch) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	slices.Sort(ids)

	var reaped []reapedAssignment
	for _, id := range ids {
		ch := p.channels[id]
		if ch.state == stateBusy {
			reaped = append(reaped, reapedAssignment{
				channelID:  id,
				name:       ch.name,
				instanceID: ch.instanceID,
				overlap:    ch.overlap,
			})
		}
		p.logger.Debug("destroying finished temporary channel",
			"manager", p.managerName,
			"channel_id", id,
			"sound", ch.name)
		p.destroy(ch)
	}
	return reaped
}

// engineFinished reports whether a busy channel's unit ran out of audio
// before the scheduled completion fired. Staged, paused, and looping
// assignments never qualify.
func (p *channelPool) engineFinished(ch *channel) bool {
	return ch.state == stateBusy && ch.started && !ch.paused && !ch.loop && !ch.unit.IsPlaying()
}

// setMasterVolume rescales the output volume of every channel in place.
func (p *channelPool) setMasterVolume(v float64) {
	p.masterVolume = v
	for _, ch := range p.channels {
		if err := ch.unit.SetVolume(ch.baseVolume * v); err != nil {
			p.logger.Warn("failed to apply master volume",
				"manager", p.managerName,
				"channel_id", ch.id,
				"error", err)
		}
	}
}

func (p *channelPool) removeFromBusy(id int) {
	if i := slices.Index(p.busyQueue, id); i >= 0 {
		p.busyQueue = slices.Delete(p.busyQueue, i, i+1)
	}
}

func (p *channelPool) removeFromFree(id int) {
	if i := slices.Index(p.freeQueue, id); i >= 0 {
		p.freeQueue = slices.Delete(p.freeQueue, i, i+1)
	}
}

func (p *channelPool) counts() (free, busy, temporary int) {
	for _, ch := range p.channels {
		switch {
		case ch.state == stateFree:
			free++
		default:
			busy++
		}
		if ch.temporary {
			temporary++
		}
	}
	return free, busy, temporary
}

func (p *channelPool) snapshot() []ChannelStatus {
	statuses := make([]ChannelStatus, 0, len(p.channels))
	for _, ch := range p.channels {
		statuses = append(statuses, ch.status())
	}
	slices.SortFunc(statuses, func(a, b ChannelStatus) int {
		return a.ID - b.ID
	})
	return statuses
}

// close tears down every channel. Busy assignments are stopped without
// notification; callers wanting stop notifications settle them first.
func (p *channelPool) close() {
	for _, ch := range p.channels {
		if ch.state != stateFree {
			if err := ch.unit.Stop(); err != nil {
				p.logger.Debug("stop during pool close failed",
					"manager", p.managerName,
					"channel_id", ch.id,
					"error", err)
			}
		}
		if err := ch.unit.Close(); err != nil {
			p.logger.Warn("failed to close output unit",
				"manager", p.managerName,
				"channel_id", ch.id,
				"error", err)
		}
	}
	p.channels = make(map[int]*channel)
	p.freeQueue = nil
	p.busyQueue = nil
}

func (p *channelPool) String() string {
	free, busy, temporary := p.counts()
	return fmt.Sprintf("pool %s: %d free, %d busy, %d temporary", p.managerName, free, busy, temporary)
}
