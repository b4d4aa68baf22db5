// Package mqtt publishes playback lifecycle events to an MQTT broker.
// The client wraps paho with reconnect backoff and publish metrics; the
// consumer bridges the event bus onto the configured topic.
package mqtt

import (
	"context"
	"time"
)

// Client is the broker-facing surface of this package.
type Client interface {
	// Connect attempts to connect to the MQTT broker.
	Connect(ctx context.Context) error

	// Publish sends a message to the specified topic on the MQTT broker.
	Publish(ctx context.Context, topic, payload string) error

	// IsConnected reports whether the client currently holds a broker
	// connection.
	IsConnected() bool

	// Disconnect closes the connection and stops any reconnect timer.
	Disconnect()
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string // topic playback events are published to
	Retain   bool   // true to retain messages at the broker

	ReconnectCooldown time.Duration
	ReconnectDelay    time.Duration
	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// DefaultConfig returns a Config with reasonable default values.
func DefaultConfig() Config {
	return Config{
		ReconnectCooldown: 5 * time.Second,
		ReconnectDelay:    1 * time.Second,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}
