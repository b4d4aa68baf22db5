package soundcore

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testBase is the wall-clock origin the synthetic clock starts at.
var testBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testBase}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// fakeClip is a decoded clip of a fixed duration.
type fakeClip struct {
	duration time.Duration
}

func (c *fakeClip) Duration() time.Duration { return c.duration }
func (c *fakeClip) SampleRate() int         { return 44100 }
func (c *fakeClip) Channels() int           { return 2 }
func (c *fakeClip) Samples() []float32      { return nil }

// fakeUnit records every call an assignment makes on an output unit. The
// position field stands in for real playback progress; tests set it
// directly when elapsed time matters.
type fakeUnit struct {
	clip     Clip
	volume   float64
	pitch    float64
	loop     bool
	playing  bool
	paused   bool
	position time.Duration
	closed   bool

	assigns int
	plays   int
	stops   int
	pauses  int
	resumes int

	failAssign error
	failPlay   error
}

func (u *fakeUnit) Assign(clip Clip, volume, pitch float64, loop bool) error {
	if u.failAssign != nil {
		return u.failAssign
	}
	u.assigns++
	u.clip = clip
	u.volume = volume
	u.pitch = pitch
	u.loop = loop
	u.playing = false
	u.paused = false
	u.position = 0
	return nil
}

func (u *fakeUnit) Play() error {
	if u.failPlay != nil {
		return u.failPlay
	}
	u.plays++
	u.playing = true
	u.paused = false
	return nil
}

func (u *fakeUnit) Stop() error {
	u.stops++
	u.playing = false
	u.paused = false
	u.position = 0
	return nil
}

func (u *fakeUnit) Pause() error {
	u.pauses++
	u.playing = false
	u.paused = true
	return nil
}

func (u *fakeUnit) Resume() error {
	u.resumes++
	u.playing = true
	u.paused = false
	return nil
}

func (u *fakeUnit) IsPlaying() bool        { return u.playing }
func (u *fakeUnit) Elapsed() time.Duration { return u.position }

func (u *fakeUnit) SetVolume(volume float64) error {
	u.volume = volume
	return nil
}

func (u *fakeUnit) Close() error {
	u.closed = true
	return nil
}

// fakeBackend hands out fakeUnits in creation order, which matches channel
// id order for a fresh pool.
type fakeBackend struct {
	units    []*fakeUnit
	failFrom int // fail creation once this many units exist, 0 means never
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) NewOutputUnit() (OutputUnit, error) {
	if b.failFrom > 0 && len(b.units) >= b.failFrom {
		return nil, fmt.Errorf("unit limit reached at %d", b.failFrom)
	}
	u := &fakeUnit{}
	b.units = append(b.units, u)
	return u, nil
}

// fakeProvider resolves entries by name or decimal id.
type fakeProvider struct {
	entries map[string]SoundEntry
}

func newFakeProvider(entries ...SoundEntry) *fakeProvider {
	p := &fakeProvider{entries: make(map[string]SoundEntry)}
	for _, e := range entries {
		p.entries[e.Name] = e
	}
	return p
}

func (p *fakeProvider) Lookup(nameOrID string) (SoundEntry, bool) {
	if e, ok := p.entries[nameOrID]; ok {
		return e, true
	}
	if id, err := strconv.Atoi(nameOrID); err == nil {
		for _, e := range p.entries {
			if e.ID == id {
				return e, true
			}
		}
	}
	return SoundEntry{}, false
}

// memStore is an in-memory PreferenceStore.
type memStore struct {
	floats     map[string]float64
	ints       map[string]int
	failWrites bool
}

func newMemStore() *memStore {
	return &memStore{
		floats: make(map[string]float64),
		ints:   make(map[string]int),
	}
}

func (s *memStore) GetFloat(key string) (float64, bool) {
	v, ok := s.floats[key]
	return v, ok
}

func (s *memStore) SetFloat(key string, v float64) error {
	if s.failWrites {
		return fmt.Errorf("store unavailable")
	}
	s.floats[key] = v
	return nil
}

func (s *memStore) GetInt(key string) (int, bool) {
	v, ok := s.ints[key]
	return v, ok
}

func (s *memStore) SetInt(key string, v int) error {
	if s.failWrites {
		return fmt.Errorf("store unavailable")
	}
	s.ints[key] = v
	return nil
}

// recorder collects observer callbacks in dispatch order as "kind:name"
// strings.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) OnAudioStart(name string)    { r.record("start:" + name) }
func (r *recorder) OnAudioComplete(name string) { r.record("complete:" + name) }
func (r *recorder) OnAudioStop(name string)     { r.record("stop:" + name) }

func (r *recorder) record(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func (r *recorder) count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if strings.HasPrefix(ev, kind+":") {
			n++
		}
	}
	return n
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type sinkEvent struct {
	manager    string
	sound      string
	channelID  int
	instanceID string
	kind       string
}

// fakeSink records playback events published to the external fan-out.
type fakeSink struct {
	mu     sync.Mutex
	events []sinkEvent
}

func (s *fakeSink) PublishPlayback(manager, sound string, channelID int, instanceID, kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, sinkEvent{manager, sound, channelID, instanceID, kind})
}

func (s *fakeSink) all() []sinkEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

// testHarness bundles a manager with its collaborators.
type testHarness struct {
	manager  *Manager
	backend  *fakeBackend
	clock    *fakeClock
	recorder *recorder
	store    *memStore
	sink     *fakeSink
}

func defaultEntries() []SoundEntry {
	clip2s := &fakeClip{duration: 2 * time.Second}
	return []SoundEntry{
		{Name: "music", ID: 1, Clip: clip2s, Volume: 0.8, Pitch: 1},
		{Name: "click", ID: 2, Clip: &fakeClip{duration: 500 * time.Millisecond}, Volume: 1, Pitch: 1},
		{Name: "fast", ID: 3, Clip: clip2s, Volume: 1, Pitch: 2},
		{Name: "reverse", ID: 4, Clip: clip2s, Volume: 1, Pitch: -2},
		{Name: "ambience", ID: 5, Clip: clip2s, Volume: 0.6, Pitch: 1, Loop: true},
	}
}

func testEntry(name string, d time.Duration) SoundEntry {
	return SoundEntry{Name: name, Clip: &fakeClip{duration: d}, Volume: 1, Pitch: 1}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T, cfg Config, entries ...SoundEntry) *testHarness {
	t.Helper()
	if len(entries) == 0 {
		entries = defaultEntries()
	}
	h := &testHarness{
		backend:  &fakeBackend{},
		clock:    newFakeClock(),
		recorder: &recorder{},
		store:    newMemStore(),
		sink:     &fakeSink{},
	}
	mgr, err := NewManager(cfg, newFakeProvider(entries...), h.backend,
		WithClock(h.clock.Now),
		WithObserver(h.recorder),
		WithPreferenceStore(h.store),
		WithEventSink(h.sink),
		WithLogger(discardLogger()),
	)
	require.NoError(t, err)
	h.manager = mgr
	t.Cleanup(func() { _ = mgr.Close() })
	return h
}

func strictConfig() Config {
	return Config{
		ManagerName:     "test",
		MaxChannels:     3,
		PrewarmChannels: 3,
		StrictLimit:     true,
		MasterVolume:    1,
	}
}

func dynamicConfig() Config {
	cfg := strictConfig()
	cfg.StrictLimit = false
	return cfg
}
