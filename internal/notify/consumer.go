package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/tphakala/soundpool-go/internal/errors"
	"github.com/tphakala/soundpool-go/internal/events"
)

// maxMessageLength caps notification bodies so chat services do not
// reject or mangle oversized payloads.
const maxMessageLength = 500

// Consumer receives error events from the event bus and pushes the ones
// at or above the configured priority threshold. Duplicate suppression
// happens upstream in the bus deduplicator, so every event arriving here
// is already worth considering.
type Consumer struct {
	sender      Sender
	minPriority Priority
	logger      *slog.Logger

	eventsSent    atomic.Uint64
	eventsSkipped atomic.Uint64
	eventsFailed  atomic.Uint64
}

// ConsumerStats contains delivery counters for monitoring.
type ConsumerStats struct {
	Sent    uint64
	Skipped uint64
	Failed  uint64
}

// NewConsumer creates an event bus consumer that pushes through sender.
// minPriority may be empty, which defaults to high so routine operational
// errors do not page anyone.
func NewConsumer(sender Sender, minPriority string) (*Consumer, error) {
	if sender == nil {
		return nil, errors.Newf("notification sender is required").
			Component("notify").
			Category(errors.CategoryValidation).
			Build()
	}
	threshold := PriorityHigh
	if minPriority != "" {
		parsed, err := ParsePriority(minPriority)
		if err != nil {
			return nil, err
		}
		threshold = parsed
	}
	return &Consumer{
		sender:      sender,
		minPriority: threshold,
		logger:      serviceLogger(),
	}, nil
}

// Name returns the consumer name for event bus registration.
func (c *Consumer) Name() string {
	return "notify"
}

// ProcessEvent pushes a single error event if it clears the threshold.
func (c *Consumer) ProcessEvent(event events.ErrorEvent) error {
	priority := eventPriority(event)
	if !priority.AtLeast(c.minPriority) {
		c.eventsSkipped.Add(1)
		c.logger.Debug("skipping low priority error notification",
			"category", event.GetCategory(),
			"priority", string(priority),
			"component", event.GetComponent(),
		)
		return nil
	}

	title := notificationTitle(event, priority)
	body := notificationBody(event)

	if err := c.sender.Send(context.Background(), title, body); err != nil {
		c.eventsFailed.Add(1)
		c.logger.Warn("failed to push error notification",
			"component", event.GetComponent(),
			"category", event.GetCategory(),
			"error", err,
		)
		return err
	}

	c.eventsSent.Add(1)
	c.logger.Debug("pushed error notification",
		"component", event.GetComponent(),
		"category", event.GetCategory(),
		"priority", string(priority),
	)
	return nil
}

// ProcessBatch pushes events individually; notification services have no
// batch API worth aggregating for.
func (c *Consumer) ProcessBatch(errorEvents []events.ErrorEvent) error {
	var lastErr error
	for _, event := range errorEvents {
		if err := c.ProcessEvent(event); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// SupportsBatching returns false; events are pushed as they arrive.
func (c *Consumer) SupportsBatching() bool {
	return false
}

// Stats returns delivery counters.
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Sent:    c.eventsSent.Load(),
		Skipped: c.eventsSkipped.Load(),
		Failed:  c.eventsFailed.Load(),
	}
}

// eventPriority resolves the priority of an error event. An explicit
// priority set on the error wins over the category mapping.
func eventPriority(event events.ErrorEvent) Priority {
	if p, ok := event.(interface{ GetPriority() string }); ok {
		if override, err := ParsePriority(p.GetPriority()); err == nil {
			return override
		}
	}
	return categoryPriority(event.GetCategory())
}

func notificationTitle(event events.ErrorEvent, priority Priority) string {
	if priority == PriorityCritical {
		return fmt.Sprintf("Critical %s error in %s", event.GetCategory(), event.GetComponent())
	}
	return fmt.Sprintf("%s error in %s", event.GetCategory(), event.GetComponent())
}

func notificationBody(event events.ErrorEvent) string {
	message := event.GetMessage()
	if len(message) > maxMessageLength {
		message = message[:maxMessageLength-3] + "..."
	}
	return message
}
