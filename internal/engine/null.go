package engine

import (
	"time"

	"github.com/tphakala/soundpool-go/internal/errors"
	"github.com/tphakala/soundpool-go/internal/soundcore"
)

// NullBackend tracks playback as wall-clock arithmetic without producing
// audio. It backs headless runs and tests where no output device exists.
type NullBackend struct{}

// NewNullBackend returns a silent backend.
func NewNullBackend() *NullBackend {
	return &NullBackend{}
}

// Name identifies the backend in snapshots and logs.
func (b *NullBackend) Name() string {
	return "null"
}

// NewOutputUnit allocates a clock-only voice.
func (b *NullBackend) NewOutputUnit() (soundcore.OutputUnit, error) {
	return &nullUnit{}, nil
}

func (b *NullBackend) Close() error {
	return nil
}

// nullUnit models one voice as a timer: a clip "plays" for its duration
// scaled by pitch magnitude and then expires on its own, unless it loops.
// The manager serializes unit calls, so the unit keeps no lock of its own.
type nullUnit struct {
	assigned  bool
	loop      bool
	duration  time.Duration // clip length at the assigned pitch
	playing   bool
	startedAt time.Time
	consumed  time.Duration // elapsed time frozen across pauses
}

func (u *nullUnit) Assign(clip soundcore.Clip, volume, pitch float64, loop bool) error {
	if clip == nil || len(clip.Samples()) == 0 {
		return errors.Newf("cannot assign an empty clip").
			Component(ComponentEngine).
			Category(errors.CategoryValidation).
			Build()
	}
	dur := clip.Duration()
	if speed, _ := pitchRate(pitch); speed != 1 {
		dur = time.Duration(float64(dur) / speed)
	}
	u.assigned = true
	u.loop = loop
	u.duration = dur
	u.playing = false
	u.consumed = 0
	return nil
}

func (u *nullUnit) Play() error {
	if !u.assigned {
		return errNoAssignment()
	}
	u.playing = true
	u.startedAt = time.Now()
	u.consumed = 0
	return nil
}

func (u *nullUnit) Stop() error {
	u.playing = false
	u.consumed = 0
	return nil
}

func (u *nullUnit) Pause() error {
	if u.playing {
		u.consumed = u.rawElapsed()
		u.playing = false
	}
	return nil
}

func (u *nullUnit) Resume() error {
	if !u.assigned {
		return errNoAssignment()
	}
	u.playing = true
	u.startedAt = time.Now()
	return nil
}

// IsPlaying expires finished clips by clock: a non-looping assignment
// stops reporting playback once its scaled duration has passed.
func (u *nullUnit) IsPlaying() bool {
	if !u.playing {
		return false
	}
	if u.loop {
		return true
	}
	return u.rawElapsed() < u.duration
}

// Elapsed caps at the clip duration for non-looping clips, mirroring how
// a rendered voice freezes at its final frame. Looping clips keep
// counting.
func (u *nullUnit) Elapsed() time.Duration {
	raw := u.rawElapsed()
	if !u.loop && raw > u.duration {
		return u.duration
	}
	return raw
}

func (u *nullUnit) SetVolume(volume float64) error {
	return nil
}

func (u *nullUnit) Close() error {
	u.playing = false
	u.assigned = false
	return nil
}

// rawElapsed is consumed time plus the running stretch since the last
// play or resume.
func (u *nullUnit) rawElapsed() time.Duration {
	if !u.playing {
		return u.consumed
	}
	return u.consumed + time.Since(u.startedAt)
}
