package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/soundpool-go/internal/errors"
)

// webhookServer captures notification payloads delivered over HTTP.
type webhookServer struct {
	server *httptest.Server
	status int

	mu     sync.Mutex
	bodies []string
}

func newWebhookServer(status int) *webhookServer {
	w := &webhookServer{status: status}
	w.server = httptest.NewServer(http.HandlerFunc(w.handle))
	return w
}

func (w *webhookServer) handle(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(rw, "failed to read request body", http.StatusInternalServerError)
		return
	}
	w.mu.Lock()
	w.bodies = append(w.bodies, string(body))
	w.mu.Unlock()
	rw.WriteHeader(w.status)
}

func (w *webhookServer) received() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.bodies))
	copy(out, w.bodies)
	return out
}

// genericURL converts the httptest base URL into a shoutrrr generic
// webhook URL.
func (w *webhookServer) genericURL() string {
	host := strings.TrimPrefix(w.server.URL, "http://")
	return "generic://" + host + "/hook?disabletls=yes"
}

func TestNewShoutrrrSenderRequiresURL(t *testing.T) {
	t.Parallel()

	_, err := NewShoutrrrSender(nil, time.Second)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestNewShoutrrrSenderRejectsUnknownService(t *testing.T) {
	t.Parallel()

	_, err := NewShoutrrrSender([]string{"carrierpigeon://coop.example.com"}, time.Second)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestShoutrrrSenderDeliversToWebhook(t *testing.T) {
	t.Parallel()

	server := newWebhookServer(http.StatusOK)
	defer server.server.Close()

	sender, err := NewShoutrrrSender([]string{server.genericURL()}, 2*time.Second)
	require.NoError(t, err)

	err = sender.Send(context.Background(), "Engine trouble", "output device lost")
	require.NoError(t, err)

	received := server.received()
	require.Len(t, received, 1)
	assert.Contains(t, received[0], "output device lost")
}

func TestShoutrrrSenderReportsDeliveryFailure(t *testing.T) {
	t.Parallel()

	server := newWebhookServer(http.StatusInternalServerError)
	defer server.server.Close()

	sender, err := NewShoutrrrSender([]string{server.genericURL()}, 2*time.Second)
	require.NoError(t, err)

	err = sender.Send(context.Background(), "Engine trouble", "output device lost")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryIntegration))
}
