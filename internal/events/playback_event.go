package events

import (
	"fmt"
	"time"
)

// Playback lifecycle kinds
const (
	PlaybackStarted  = "started"
	PlaybackFinished = "finished"
	PlaybackStopped  = "stopped"
)

// playbackEventImpl is the concrete implementation of PlaybackEvent
type playbackEventImpl struct {
	manager    string
	sound      string
	channelID  int
	instanceID string
	kind       string
	timestamp  time.Time
}

// NewPlaybackEvent creates a new playback lifecycle event
func NewPlaybackEvent(manager, sound string, channelID int, instanceID, kind string) PlaybackEvent {
	return &playbackEventImpl{
		manager:    manager,
		sound:      sound,
		channelID:  channelID,
		instanceID: instanceID,
		kind:       kind,
		timestamp:  time.Now(),
	}
}

// GetManager returns the name of the manager that owns the channel
func (e *playbackEventImpl) GetManager() string {
	return e.manager
}

// GetSound returns the catalog name of the sound being played
func (e *playbackEventImpl) GetSound() string {
	return e.sound
}

// GetChannelID returns the pool channel the sound was assigned to
func (e *playbackEventImpl) GetChannelID() int {
	return e.channelID
}

// GetInstanceID returns the unique id of this playback instance
func (e *playbackEventImpl) GetInstanceID() string {
	return e.instanceID
}

// GetKind returns the lifecycle kind
func (e *playbackEventImpl) GetKind() string {
	return e.kind
}

// GetTimestamp returns when the event occurred
func (e *playbackEventImpl) GetTimestamp() time.Time {
	return e.timestamp
}

// GetMessage returns a human-readable message
func (e *playbackEventImpl) GetMessage() string {
	switch e.kind {
	case PlaybackStarted:
		return fmt.Sprintf("%s: %q started on channel %d", e.manager, e.sound, e.channelID)
	case PlaybackFinished:
		return fmt.Sprintf("%s: %q finished on channel %d", e.manager, e.sound, e.channelID)
	case PlaybackStopped:
		return fmt.Sprintf("%s: %q stopped on channel %d", e.manager, e.sound, e.channelID)
	default:
		return fmt.Sprintf("%s: %q %s on channel %d", e.manager, e.sound, e.kind, e.channelID)
	}
}
