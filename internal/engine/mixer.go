package engine

import (
	"sync"
	"time"

	"github.com/tphakala/soundpool-go/internal/errors"
	"github.com/tphakala/soundpool-go/internal/soundcore"
)

// mixer sums the active voices into the device output buffer. The device
// data callback runs on the audio thread while units are driven from the
// manager goroutine, so all voice state lives behind the mixer mutex and
// the render path holds it for one period at a time.
type mixer struct {
	mu       sync.Mutex
	voices   []*voice
	rate     int
	channels int
}

func newMixer(rate, channels int) *mixer {
	return &mixer{rate: rate, channels: channels}
}

func (mx *mixer) addVoice() *voice {
	v := &voice{}
	mx.mu.Lock()
	mx.voices = append(mx.voices, v)
	mx.mu.Unlock()
	return v
}

func (mx *mixer) removeVoice(v *voice) {
	mx.mu.Lock()
	for i, cur := range mx.voices {
		if cur == v {
			mx.voices[i] = mx.voices[len(mx.voices)-1]
			mx.voices[len(mx.voices)-1] = nil
			mx.voices = mx.voices[:len(mx.voices)-1]
			break
		}
	}
	mx.mu.Unlock()
}

// render mixes one period of interleaved frames into out and reports how
// many voices produced samples. The sum is clamped to [-1, 1].
func (mx *mixer) render(out []float32) int {
	for i := range out {
		out[i] = 0
	}
	frames := len(out) / mx.channels

	mx.mu.Lock()
	active := 0
	for _, v := range mx.voices {
		if v.mix(out, frames, mx.channels) {
			active++
		}
	}
	mx.mu.Unlock()

	for i, s := range out {
		if s > 1 {
			out[i] = 1
		} else if s < -1 {
			out[i] = -1
		}
	}
	return active
}

// voice is one playback cursor over a decoded clip. All fields are guarded
// by the owning mixer's mutex.
type voice struct {
	samples  []float32
	channels int
	srcRate  int

	pos     float64 // source frame cursor
	step    float64 // source frames per output frame, negative plays backward
	gain    float64
	loop    bool
	playing bool

	framesOut uint64 // output frames rendered while playing, drives Elapsed
}

func (v *voice) frames() int {
	if v.channels == 0 {
		return 0
	}
	return len(v.samples) / v.channels
}

// startPos is the cursor a fresh start begins at: frame zero going
// forward, the last frame going backward.
func (v *voice) startPos() float64 {
	if v.step < 0 {
		return float64(v.frames() - 1)
	}
	return 0
}

// mix adds up to frames output frames into out and reports whether the
// voice was producing samples when the period began. Non-looping voices
// stop themselves at either end of the clip.
func (v *voice) mix(out []float32, frames, outChannels int) bool {
	if !v.playing {
		return false
	}
	total := v.frames()
	if total == 0 {
		v.playing = false
		return false
	}
	gain := float32(v.gain)
	for f := 0; f < frames; f++ {
		if v.step >= 0 && v.pos >= float64(total) {
			if !v.loop {
				v.playing = false
				break
			}
			v.pos -= float64(total)
		} else if v.step < 0 && v.pos < 0 {
			if !v.loop {
				v.playing = false
				break
			}
			v.pos += float64(total)
		}
		l, r := v.frameAt(v.pos)
		base := f * outChannels
		if outChannels == 1 {
			out[base] += (l + r) / 2 * gain
		} else {
			out[base] += l * gain
			out[base+1] += r * gain
		}
		v.pos += v.step
		v.framesOut++
	}
	return true
}

// frameAt reads the source frame at a fractional cursor with linear
// interpolation, duplicating mono sources to both outputs.
func (v *voice) frameAt(pos float64) (l, r float32) {
	last := v.frames() - 1
	i0 := int(pos)
	if i0 > last {
		i0 = last
	}
	i1 := i0 + 1
	if i1 > last {
		if v.loop {
			i1 = 0
		} else {
			i1 = last
		}
	}
	frac := float32(pos - float64(i0))
	l0, r0 := v.rawFrame(i0)
	l1, r1 := v.rawFrame(i1)
	return l0 + (l1-l0)*frac, r0 + (r1-r0)*frac
}

func (v *voice) rawFrame(i int) (l, r float32) {
	base := i * v.channels
	if v.channels == 1 {
		s := v.samples[base]
		return s, s
	}
	return v.samples[base], v.samples[base+1]
}

// mixerUnit adapts one mixer voice to the output unit contract.
type mixerUnit struct {
	mx *mixer
	v  *voice
}

func newMixerUnit(mx *mixer) *mixerUnit {
	return &mixerUnit{mx: mx, v: mx.addVoice()}
}

func (u *mixerUnit) Assign(clip soundcore.Clip, volume, pitch float64, loop bool) error {
	if clip == nil || len(clip.Samples()) == 0 {
		return errors.Newf("cannot assign an empty clip").
			Component(ComponentEngine).
			Category(errors.CategoryValidation).
			Build()
	}
	if ch := clip.Channels(); ch != 1 && ch != 2 {
		return errors.Newf("unsupported clip channel count: %d", ch).
			Component(ComponentEngine).
			Category(errors.CategoryValidation).
			Build()
	}
	speed, reverse := pitchRate(pitch)
	step := speed * float64(clip.SampleRate()) / float64(u.mx.rate)
	if reverse {
		step = -step
	}

	u.mx.mu.Lock()
	defer u.mx.mu.Unlock()
	u.v.samples = clip.Samples()
	u.v.channels = clip.Channels()
	u.v.srcRate = clip.SampleRate()
	u.v.step = step
	u.v.gain = volume
	u.v.loop = loop
	u.v.playing = false
	u.v.pos = u.v.startPos()
	u.v.framesOut = 0
	return nil
}

func (u *mixerUnit) Play() error {
	u.mx.mu.Lock()
	defer u.mx.mu.Unlock()
	if len(u.v.samples) == 0 {
		return errNoAssignment()
	}
	u.v.pos = u.v.startPos()
	u.v.framesOut = 0
	u.v.playing = true
	return nil
}

func (u *mixerUnit) Stop() error {
	u.mx.mu.Lock()
	defer u.mx.mu.Unlock()
	u.v.playing = false
	u.v.pos = u.v.startPos()
	u.v.framesOut = 0
	return nil
}

func (u *mixerUnit) Pause() error {
	u.mx.mu.Lock()
	defer u.mx.mu.Unlock()
	u.v.playing = false
	return nil
}

func (u *mixerUnit) Resume() error {
	u.mx.mu.Lock()
	defer u.mx.mu.Unlock()
	if len(u.v.samples) == 0 {
		return errNoAssignment()
	}
	u.v.playing = true
	return nil
}

func (u *mixerUnit) IsPlaying() bool {
	u.mx.mu.Lock()
	defer u.mx.mu.Unlock()
	return u.v.playing
}

func (u *mixerUnit) Elapsed() time.Duration {
	u.mx.mu.Lock()
	defer u.mx.mu.Unlock()
	return time.Duration(float64(u.v.framesOut) / float64(u.mx.rate) * float64(time.Second))
}

func (u *mixerUnit) SetVolume(volume float64) error {
	u.mx.mu.Lock()
	defer u.mx.mu.Unlock()
	u.v.gain = volume
	return nil
}

func (u *mixerUnit) Close() error {
	u.mx.removeVoice(u.v)
	return nil
}

func errNoAssignment() error {
	return errors.Newf("no clip assigned").
		Component(ComponentEngine).
		Category(errors.CategoryState).
		Build()
}
