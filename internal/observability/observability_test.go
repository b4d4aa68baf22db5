package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/soundpool-go/internal/conf"
)

// TestNewMetricsConcurrency verifies that NewMetrics can be called
// concurrently without causing race conditions
func TestNewMetricsConcurrency(t *testing.T) {
	const numGoroutines = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for range numGoroutines {
		go func() {
			defer wg.Done()

			m, err := NewMetrics()
			if err != nil {
				t.Errorf("NewMetrics failed: %v", err)
				return
			}
			if m == nil {
				t.Error("NewMetrics returned nil")
				return
			}

			if m.registry == nil {
				t.Error("metrics.registry is nil")
			}
			if m.SoundCore == nil {
				t.Error("metrics.SoundCore is nil")
			}
			if m.Engine == nil {
				t.Error("metrics.Engine is nil")
			}
			if m.HTTP == nil {
				t.Error("metrics.HTTP is nil")
			}
			if m.MQTT == nil {
				t.Error("metrics.MQTT is nil")
			}
		}()
	}

	wg.Wait()
}

func TestMetricsHandlerServesScrape(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	m.SoundCore.UpdateMasterVolume("sfx", 0.8)
	m.Engine.UpdateDeviceRunning("malgo", true)

	mux := http.NewServeMux()
	m.RegisterHandlers(mux)

	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "soundpool_master_volume")
	assert.Contains(t, string(body), "soundpool_engine_device_running")
	assert.Contains(t, string(body), "mqtt_connection_status")
}

func TestNewEndpointRequiresTelemetryEnabled(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	settings := &conf.Settings{}
	_, err = NewEndpoint(settings, m)
	assert.Error(t, err)
}

func TestEndpointStartAndShutdown(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	settings := &conf.Settings{}
	settings.Telemetry.Enabled = true
	settings.Telemetry.Listen = "127.0.0.1:0"

	endpoint, err := NewEndpoint(settings, m)
	require.NoError(t, err)
	assert.Same(t, m, endpoint.GetMetrics())

	var wg sync.WaitGroup
	quit := make(chan struct{})
	endpoint.Start(&wg, quit)

	// Let the listener come up before tearing it down.
	time.Sleep(50 * time.Millisecond)
	close(quit)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("telemetry server did not shut down")
	}
}
