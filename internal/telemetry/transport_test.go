package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/require"
)

// mockTransport implements sentry.Transport and captures events so tests
// never send real data.
type mockTransport struct {
	mu     sync.RWMutex
	events []*sentry.Event
}

func newMockTransport() *mockTransport {
	return &mockTransport{}
}

//nolint:gocritic // hugeParam: interface requirement
func (t *mockTransport) Configure(_ sentry.ClientOptions) {}

func (t *mockTransport) SendEvent(event *sentry.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

func (t *mockTransport) Flush(_ time.Duration) bool { return true }

func (t *mockTransport) FlushWithContext(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	default:
		return true
	}
}

func (t *mockTransport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = nil
}

func (t *mockTransport) captured() []*sentry.Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*sentry.Event, len(t.events))
	copy(out, t.events)
	return out
}

func (t *mockTransport) count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.events)
}

// setupMockSentry points the global Sentry client at a capturing
// transport. The empty DSN prevents any real connection.
func setupMockSentry(t *testing.T) *mockTransport {
	t.Helper()

	transport := newMockTransport()
	err := sentry.Init(sentry.ClientOptions{
		Dsn:       "",
		Transport: transport,
		Release:   "soundpool-go@test",
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		sentry.Flush(time.Second)
	})
	return transport
}
