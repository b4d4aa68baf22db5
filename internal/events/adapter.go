package events

// EventPublisherAdapter adapts the EventBus to the errors package's
// EventPublisher interface, so built errors can be pushed onto the bus
// without the errors package importing this one. Wired at startup with
// errors.SetEventPublisher(NewEventPublisherAdapter(bus)).
type EventPublisherAdapter struct {
	eventBus *EventBus
}

// NewEventPublisherAdapter creates a new adapter
func NewEventPublisherAdapter(eventBus *EventBus) *EventPublisherAdapter {
	return &EventPublisherAdapter{
		eventBus: eventBus,
	}
}

// TryPublish attempts to publish an event. It accepts any and type asserts
// to ErrorEvent.
func (a *EventPublisherAdapter) TryPublish(event any) bool {
	// Fast path: check if any consumers are active
	if !HasActiveConsumers() {
		return false
	}

	if a.eventBus == nil {
		return false
	}

	errorEvent, ok := event.(ErrorEvent)
	if !ok {
		return false
	}

	return a.eventBus.TryPublish(errorEvent)
}

// PlaybackSinkAdapter adapts the EventBus to the playback manager's event
// sink interface. The manager mirrors every lifecycle notification through
// the sink without importing this package; publishing is best effort and
// drops events when the bus is saturated.
type PlaybackSinkAdapter struct {
	eventBus *EventBus
}

// NewPlaybackSinkAdapter creates a new adapter
func NewPlaybackSinkAdapter(eventBus *EventBus) *PlaybackSinkAdapter {
	return &PlaybackSinkAdapter{
		eventBus: eventBus,
	}
}

// PublishPlayback wraps one lifecycle notification as a PlaybackEvent and
// offers it to the bus.
func (a *PlaybackSinkAdapter) PublishPlayback(manager, sound string, channelID int, instanceID, kind string) {
	if a.eventBus == nil {
		return
	}
	a.eventBus.TryPublishPlayback(NewPlaybackEvent(manager, sound, channelID, instanceID, kind))
}
