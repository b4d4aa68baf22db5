package engine

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The null context backend renders through miniaudio's simulated device
// clock, so the full data-callback path runs without audio hardware.
func TestMalgoBackendNullContext(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping device callback test in short mode")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b, err := newMalgoBackendWith([]malgo.Backend{malgo.BackendNull}, "", 48000, 2, nil, logger)
	if err != nil {
		t.Skipf("null audio context unavailable: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })

	assert.Equal(t, "malgo", b.Name())

	unit, err := b.NewOutputUnit()
	require.NoError(t, err)
	t.Cleanup(func() { _ = unit.Close() })

	require.NoError(t, unit.Assign(constantClip(0.5, 9600, 48000), 1, 1, false))
	require.NoError(t, unit.Play())
	assert.True(t, unit.IsPlaying())

	require.Eventually(t, func() bool {
		return !unit.IsPlaying()
	}, 5*time.Second, 20*time.Millisecond, "device clock should drain the clip")
	assert.InDelta(t, 0.2, unit.Elapsed().Seconds(), 0.05)

	require.NoError(t, unit.Assign(constantClip(0.5, 4800, 48000), 1, 1, true))
	require.NoError(t, unit.Play())
	require.Eventually(t, func() bool {
		return b.OutputLevel().Level > 0
	}, 3*time.Second, 50*time.Millisecond, "looping output should register on the level meter")
	require.NoError(t, unit.Stop())

	require.NoError(t, b.Close())
	require.NoError(t, b.Close(), "close is idempotent")

	_, err = b.NewOutputUnit()
	assert.Error(t, err, "closed backend refuses new units")
}
