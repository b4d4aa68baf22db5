package engine

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"

	"github.com/tphakala/soundpool-go/internal/errors"
	"github.com/tphakala/soundpool-go/internal/soundcore"
)

// resampleQuality selects linear interpolation, same as the malgo mixer.
const resampleQuality = 1

// BeepBackend renders through the beep speaker, a pure Go path with no
// native dependencies. The speaker is process-global, so only one beep
// backend can be open at a time.
type BeepBackend struct {
	logger *slog.Logger
	rate   int

	mu     sync.Mutex
	closed bool
}

func newBeepBackend(rate int, logger *slog.Logger) (*BeepBackend, error) {
	sr := beep.SampleRate(rate)
	if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
		return nil, errors.New(err).
			Component(ComponentEngine).
			Category(errors.CategoryEngineInit).
			Context("operation", "speaker_init").
			Build()
	}
	logger.Info("beep speaker started", "sample_rate", rate)
	return &BeepBackend{logger: logger, rate: rate}, nil
}

// Name identifies the backend in snapshots and logs.
func (b *BeepBackend) Name() string {
	return "beep"
}

// NewOutputUnit allocates one speaker voice. The unit stays resident in
// the speaker mixer for its whole life, streaming silence while idle, so
// start and stop never race the mixer's drain of finished streamers.
func (b *BeepBackend) NewOutputUnit() (soundcore.OutputUnit, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.Newf("engine backend is closed").
			Component(ComponentEngine).
			Category(errors.CategoryState).
			Build()
	}
	u := &beepUnit{rate: b.rate}
	speaker.Play(u)
	return u, nil
}

// Close silences and shuts down the speaker.
func (b *BeepBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	speaker.Clear()
	speaker.Close()
	b.logger.Info("beep speaker closed")
	return nil
}

// assignParams keeps everything needed to rebuild the streamer chain, so
// every start gets fresh resampler state.
type assignParams struct {
	samples  []float32
	channels int
	srcRate  int
	gain     float64
	pitch    float64
	loop     bool
}

// beepUnit is one speaker voice. All fields below rate are read by the
// speaker goroutine inside Stream and are guarded by the speaker lock.
type beepUnit struct {
	rate int

	params   assignParams
	assigned bool
	src      *clipStreamer
	volume   *effects.Volume
	chain    beep.Streamer
	playing  bool
	frames   uint64
	closed   bool
}

// Stream implements beep.Streamer. It runs under the speaker lock and
// never reports drained until the unit is closed; a finished clip flips
// the unit back to idle silence instead.
func (u *beepUnit) Stream(out [][2]float64) (int, bool) {
	if u.closed {
		return 0, false
	}
	if !u.playing || u.chain == nil {
		for i := range out {
			out[i] = [2]float64{}
		}
		return len(out), true
	}
	n, ok := u.chain.Stream(out)
	u.frames += uint64(n)
	if !ok || n < len(out) {
		u.playing = false
		for i := n; i < len(out); i++ {
			out[i] = [2]float64{}
		}
	}
	return len(out), true
}

// Err implements beep.Streamer.
func (u *beepUnit) Err() error {
	return nil
}

func (u *beepUnit) buildChain() {
	p := u.params
	speed, reverse := pitchRate(p.pitch)
	u.src = &clipStreamer{
		samples:  p.samples,
		channels: p.channels,
		loop:     p.loop,
		reverse:  reverse,
	}
	u.src.rewind()
	u.volume = &effects.Volume{Streamer: u.src, Base: 2}
	u.applyGain(p.gain)
	resampler := beep.Resample(resampleQuality, beep.SampleRate(p.srcRate), beep.SampleRate(u.rate), u.volume)
	if speed != 1 {
		resampler.SetRatio(float64(p.srcRate) * speed / float64(u.rate))
	}
	u.chain = resampler
}

// applyGain maps a linear gain to the exponential volume control. Zero
// gain silences the chain outright.
func (u *beepUnit) applyGain(gain float64) {
	if gain <= 0 {
		u.volume.Silent = true
		u.volume.Volume = 0
		return
	}
	u.volume.Silent = false
	u.volume.Volume = math.Log2(gain)
}

func (u *beepUnit) Assign(clip soundcore.Clip, volume, pitch float64, loop bool) error {
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
	speaker.Lock()
	defer speaker.Unlock()
	u.params = assignParams{
		samples:  clip.Samples(),
		channels: clip.Channels(),
		srcRate:  clip.SampleRate(),
		gain:     volume,
		pitch:    pitch,
		loop:     loop,
	}
	u.assigned = true
	u.playing = false
	u.frames = 0
	u.buildChain()
	return nil
}

func (u *beepUnit) Play() error {
	speaker.Lock()
	defer speaker.Unlock()
	if !u.assigned {
		return errNoAssignment()
	}
	u.buildChain()
	u.frames = 0
	u.playing = true
	return nil
}

func (u *beepUnit) Stop() error {
	speaker.Lock()
	defer speaker.Unlock()
	u.playing = false
	if u.assigned {
		u.buildChain()
	}
	u.frames = 0
	return nil
}

func (u *beepUnit) Pause() error {
	speaker.Lock()
	defer speaker.Unlock()
	u.playing = false
	return nil
}

func (u *beepUnit) Resume() error {
	speaker.Lock()
	defer speaker.Unlock()
	if !u.assigned {
		return errNoAssignment()
	}
	u.playing = true
	return nil
}

func (u *beepUnit) IsPlaying() bool {
	speaker.Lock()
	defer speaker.Unlock()
	return u.playing
}

func (u *beepUnit) Elapsed() time.Duration {
	speaker.Lock()
	defer speaker.Unlock()
	return time.Duration(float64(u.frames) / float64(u.rate) * float64(time.Second))
}

func (u *beepUnit) SetVolume(volume float64) error {
	speaker.Lock()
	defer speaker.Unlock()
	u.params.gain = volume
	if u.volume != nil {
		u.applyGain(volume)
	}
	return nil
}

// Close marks the unit drained; the speaker mixer drops it on the next
// pull.
func (u *beepUnit) Close() error {
	speaker.Lock()
	defer speaker.Unlock()
	u.closed = true
	u.playing = false
	u.chain = nil
	return nil
}

// clipStreamer streams decoded PCM as stereo frames, looping or playing
// backward as assigned. Mono sources are duplicated to both outputs.
type clipStreamer struct {
	samples  []float32
	channels int
	loop     bool
	reverse  bool
	pos      int // frame cursor
}

func (c *clipStreamer) frames() int {
	if c.channels == 0 {
		return 0
	}
	return len(c.samples) / c.channels
}

// rewind moves the cursor to the start of a pass: frame zero going
// forward, the last frame going backward.
func (c *clipStreamer) rewind() {
	if c.reverse {
		c.pos = c.frames() - 1
	} else {
		c.pos = 0
	}
}

func (c *clipStreamer) Stream(out [][2]float64) (int, bool) {
	total := c.frames()
	if total == 0 {
		return 0, false
	}
	n := 0
	for i := range out {
		if c.pos >= total || c.pos < 0 {
			if !c.loop {
				break
			}
			c.rewind()
		}
		base := c.pos * c.channels
		if c.channels == 1 {
			s := float64(c.samples[base])
			out[i] = [2]float64{s, s}
		} else {
			out[i] = [2]float64{float64(c.samples[base]), float64(c.samples[base+1])}
		}
		if c.reverse {
			c.pos--
		} else {
			c.pos++
		}
		n++
	}
	if n == 0 {
		return 0, false
	}
	return n, true
}

func (c *clipStreamer) Err() error {
	return nil
}
