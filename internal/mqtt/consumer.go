package mqtt

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/tphakala/soundpool-go/internal/errors"
	"github.com/tphakala/soundpool-go/internal/events"
	"github.com/tphakala/soundpool-go/internal/logging"
)

// defaultTopic is used when the settings leave the topic empty.
const defaultTopic = "soundpool/playback"

// PlaybackPayload is the JSON body published for each lifecycle event.
type PlaybackPayload struct {
	Manager    string    `json:"manager"`
	Sound      string    `json:"sound"`
	ChannelID  int       `json:"channel_id"`
	InstanceID string    `json:"instance_id"`
	Kind       string    `json:"kind"`
	Timestamp  time.Time `json:"timestamp"`
	Message    string    `json:"message"`
}

// Consumer bridges playback events from the event bus to the broker.
// Error events pass through untouched; telemetry and notification own
// those.
type Consumer struct {
	client  Client
	topic   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewConsumer wraps client as an event bus consumer publishing to topic.
func NewConsumer(client Client, topic string) *Consumer {
	if topic == "" {
		topic = defaultTopic
	}

	logger := logging.ForService("mqtt")
	if logger == nil {
		logger = slog.Default().With("service", "mqtt")
	}

	return &Consumer{
		client:  client,
		topic:   topic,
		timeout: DefaultConfig().PublishTimeout,
		logger:  logger,
	}
}

// Name identifies this consumer on the event bus.
func (c *Consumer) Name() string {
	return "mqtt"
}

// ProcessEvent ignores error events.
func (c *Consumer) ProcessEvent(event events.ErrorEvent) error {
	return nil
}

// ProcessBatch ignores error events.
func (c *Consumer) ProcessBatch(errorEvents []events.ErrorEvent) error {
	return nil
}

// SupportsBatching reports that this consumer processes events one at a
// time.
func (c *Consumer) SupportsBatching() bool {
	return false
}

// ProcessPlaybackEvent publishes one playback lifecycle event as JSON.
func (c *Consumer) ProcessPlaybackEvent(event events.PlaybackEvent) error {
	payload := PlaybackPayload{
		Manager:    event.GetManager(),
		Sound:      event.GetSound(),
		ChannelID:  event.GetChannelID(),
		InstanceID: event.GetInstanceID(),
		Kind:       event.GetKind(),
		Timestamp:  event.GetTimestamp(),
		Message:    event.GetMessage(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("sound", payload.Sound).
			Build()
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.client.Publish(ctx, c.topic, string(data)); err != nil {
		c.logger.Warn("failed to publish playback event",
			"topic", c.topic,
			"sound", payload.Sound,
			"kind", payload.Kind,
			"error", err)
		return err
	}

	return nil
}
