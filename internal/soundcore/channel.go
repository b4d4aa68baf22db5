package soundcore

import (
	"math"
	"time"
)

// channelState tracks where a channel sits in its lifecycle.
type channelState int

const (
	stateFree channelState = iota
	stateBusy
	stateFinished
)

func (s channelState) String() string {
	switch s {
	case stateFree:
		return "free"
	case stateBusy:
		return "busy"
	case stateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// channel pairs one pool slot with its exclusively owned output unit. The
// generation counter is bumped on every assignment and clear so completions
// scheduled against an earlier assignment are recognized as stale.
type channel struct {
	id         int
	unit       OutputUnit
	state      channelState
	temporary  bool
	generation uint64

	// current assignment, zero values while free
	name         string
	instanceID   string
	overlap      bool
	loop         bool
	paused       bool
	started      bool
	baseVolume   float64
	pitch        float64
	clipDuration time.Duration
}

// assign loads entry onto the channel's unit and records the assignment.
// The channel becomes busy but is not yet playing.
func (c *channel) assign(entry SoundEntry, instanceID string, overlap bool, masterVolume float64) error {
	pitch := entry.Pitch
	if pitch == 0 {
		pitch = 1
	}
	if err := c.unit.Assign(entry.Clip, entry.Volume*masterVolume, pitch, entry.Loop); err != nil {
		return err
	}
	c.generation++
	c.state = stateBusy
	c.name = entry.Name
	c.instanceID = instanceID
	c.overlap = overlap
	c.loop = entry.Loop
	c.paused = false
	c.started = false
	c.baseVolume = entry.Volume
	c.pitch = pitch
	c.clipDuration = entry.Clip.Duration()
	return nil
}

// clear drops the assignment and returns the channel to the free state.
func (c *channel) clear() {
	c.generation++
	c.state = stateFree
	c.name = ""
	c.instanceID = ""
	c.overlap = false
	c.loop = false
	c.paused = false
	c.started = false
	c.baseVolume = 0
	c.pitch = 0
	c.clipDuration = 0
}

// markFinished flags a naturally completed assignment. Temporary channels
// stay in this state until the next cleanup sweep destroys them.
func (c *channel) markFinished() {
	c.state = stateFinished
}

// playbackLength returns the wall-clock time the assignment takes to play
// once, scaling the clip duration by playback speed.
func (c *channel) playbackLength() time.Duration {
	speed := math.Abs(c.pitch)
	if speed == 0 {
		return c.clipDuration
	}
	return time.Duration(float64(c.clipDuration) / speed)
}

func (c *channel) status() ChannelStatus {
	st := ChannelStatus{
		ID:        c.id,
		State:     c.state.String(),
		Temporary: c.temporary,
	}
	if c.state != stateFree {
		st.Sound = c.name
		st.InstanceID = c.instanceID
		st.Overlap = c.overlap
		st.Paused = c.paused
		st.Started = c.started
		st.Elapsed = c.unit.Elapsed()
	}
	return st
}
