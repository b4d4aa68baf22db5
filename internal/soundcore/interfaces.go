package soundcore

import (
	"time"
)

// Clip is an opaque handle to decoded audio content. The core only ever
// asks for its duration; backends consume the PCM accessors.
type Clip interface {
	// Duration returns the clip length at pitch 1.0
	Duration() time.Duration

	// SampleRate returns the decoded sample rate in Hz
	SampleRate() int

	// Channels returns the decoded channel count (1 or 2)
	Channels() int

	// Samples returns interleaved float32 PCM in [-1, 1]
	Samples() []float32
}

// SoundEntry describes one catalog asset as resolved by an EntryProvider.
type SoundEntry struct {
	Name   string  // unique catalog key
	ID     int     // numeric id, usable in lookups as a decimal string
	Clip   Clip    // decoded audio content
	Volume float64 // per-entry volume in [0, 1]
	Pitch  float64 // [-3, 3]; sign is direction, magnitude scales speed
	Loop   bool    // looping clips never auto-complete
}

// EntryProvider resolves a sound name or decimal id string to its entry.
type EntryProvider interface {
	// Lookup returns the entry for nameOrID, or false if unknown
	Lookup(nameOrID string) (SoundEntry, bool)
}

// OutputUnit is one engine-owned playback voice. Every Channel exclusively
// owns one unit for its whole life. Units are not safe for concurrent use;
// the Manager serializes all calls.
type OutputUnit interface {
	// Assign loads a clip with its effective volume, pitch, and loop flag.
	// It replaces any previous assignment and resets elapsed time to zero
	// without starting playback.
	Assign(clip Clip, volume, pitch float64, loop bool) error

	// Play starts or restarts output from the current position
	Play() error

	// Stop halts output and resets elapsed time to zero
	Stop() error

	// Pause halts output, preserving elapsed time
	Pause() error

	// Resume continues output from the preserved elapsed time
	Resume() error

	// IsPlaying reports whether the unit is audibly producing output
	IsPlaying() bool

	// Elapsed returns the playback position of the current assignment
	Elapsed() time.Duration

	// SetVolume adjusts the effective volume of the current assignment
	SetVolume(volume float64) error

	// Close releases the unit's engine resources
	Close() error
}

// Backend creates output units on a concrete audio engine. The pool calls
// NewOutputUnit once per channel; closing the backend is the owner's job,
// after the Manager is closed.
type Backend interface {
	// Name identifies the engine implementation (malgo, beep, null)
	Name() string

	// NewOutputUnit allocates one playback voice
	NewOutputUnit() (OutputUnit, error)
}

// PreferenceStore persists user-facing settings across runs. Lookups return
// false when the key has never been written; write failures are reported to
// the caller and logged by the store.
type PreferenceStore interface {
	GetFloat(key string) (float64, bool)
	SetFloat(key string, value float64) error
	GetInt(key string) (int, bool)
	SetInt(key string, value int) error
}

// Observer receives playback lifecycle notifications. Callbacks run
// synchronously on the goroutine driving the operation, outside the Manager
// mutex, so observers may call back into the Manager.
type Observer interface {
	// OnAudioStart fires when a sound audibly starts or restarts
	OnAudioStart(name string)

	// OnAudioComplete fires when a sound reaches its scheduled end
	OnAudioComplete(name string)

	// OnAudioStop fires when a sound is stopped or reclaimed before its end
	OnAudioStop(name string)
}

// EventSink mirrors notifications onto an external fan-out (the event bus)
// with per-assignment detail the Observer interface does not carry. Kind is
// one of "started", "finished", "stopped".
type EventSink interface {
	PublishPlayback(manager, sound string, channelID int, instanceID, kind string)
}

// Config holds the construction parameters of one Manager.
type Config struct {
	ManagerName     string  // preference-key namespace and metrics label
	MaxChannels     int     // capacity bound, >= 1
	PrewarmChannels int     // channels created up front, <= MaxChannels
	StrictLimit     bool    // true: fixed pool with reclaim; false: dynamic overflow
	StopOnMute      bool    // true: mute stops sessions; false: mute pauses them
	MasterVolume    float64 // initial master volume in [0, 1]
}

// ChannelStatus is one channel's row in a Snapshot.
type ChannelStatus struct {
	ID         int           `json:"id"`
	State      string        `json:"state"` // free, busy, finished
	Sound      string        `json:"sound,omitempty"`
	InstanceID string        `json:"instance_id,omitempty"`
	Temporary  bool          `json:"temporary,omitempty"`
	Overlap    bool          `json:"overlap,omitempty"`
	Paused     bool          `json:"paused,omitempty"`
	Started    bool          `json:"started,omitempty"`
	Elapsed    time.Duration `json:"elapsed,omitempty"`
}

// Snapshot is a point-in-time view of a Manager, consumed by the control
// API and daemon debug logging.
type Snapshot struct {
	Manager      string          `json:"manager"`
	Backend      string          `json:"backend"`
	StrictLimit  bool            `json:"strict_limit"`
	MasterVolume float64         `json:"master_volume"`
	Muted        bool            `json:"muted"`
	Channels     []ChannelStatus `json:"channels"`
	Sessions     map[string]int  `json:"sessions"`
	Pending      int             `json:"pending_completions"`
}
