package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clockClip returns a mono clip whose duration is exact in wall-clock
// terms, so the timer-driven unit has a crisp expiry to test against.
func clockClip(d time.Duration) *testClip {
	const rate = 1000
	frames := int(d / time.Millisecond)
	return &testClip{samples: make([]float32, frames), channels: 1, rate: rate}
}

func TestNullBackend(t *testing.T) {
	t.Parallel()

	b := NewNullBackend()
	assert.Equal(t, "null", b.Name())

	unit, err := b.NewOutputUnit()
	require.NoError(t, err)
	require.NotNil(t, unit)
	assert.NoError(t, b.Close())
}

func TestNullUnitExpiresAfterClipDuration(t *testing.T) {
	t.Parallel()

	unit := &nullUnit{}
	clip := clockClip(40 * time.Millisecond)
	require.NoError(t, unit.Assign(clip, 1, 1, false))
	assert.False(t, unit.IsPlaying(), "assign must not start playback")

	require.NoError(t, unit.Play())
	assert.True(t, unit.IsPlaying())

	require.Eventually(t, func() bool {
		return !unit.IsPlaying()
	}, 2*time.Second, 5*time.Millisecond, "clip should expire on its own")
	assert.Equal(t, clip.Duration(), unit.Elapsed(), "elapsed caps at the clip duration")
}

func TestNullUnitPitchScalesDuration(t *testing.T) {
	t.Parallel()

	unit := &nullUnit{}
	clip := clockClip(100 * time.Millisecond)
	require.NoError(t, unit.Assign(clip, 1, 2, false))
	require.NoError(t, unit.Play())

	require.Eventually(t, func() bool {
		return !unit.IsPlaying()
	}, 2*time.Second, 5*time.Millisecond)

	// Double speed halves the effective duration; reverse direction does
	// not change it.
	assert.Equal(t, 50*time.Millisecond, unit.Elapsed())

	require.NoError(t, unit.Assign(clip, 1, -2, false))
	require.NoError(t, unit.Play())
	require.Eventually(t, func() bool {
		return !unit.IsPlaying()
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 50*time.Millisecond, unit.Elapsed())
}

func TestNullUnitZeroPitchKeepsDuration(t *testing.T) {
	t.Parallel()

	unit := &nullUnit{}
	clip := clockClip(30 * time.Millisecond)
	require.NoError(t, unit.Assign(clip, 1, 0, false))
	require.NoError(t, unit.Play())

	require.Eventually(t, func() bool {
		return !unit.IsPlaying()
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, clip.Duration(), unit.Elapsed())
}

func TestNullUnitLoopNeverExpires(t *testing.T) {
	t.Parallel()

	unit := &nullUnit{}
	clip := clockClip(10 * time.Millisecond)
	require.NoError(t, unit.Assign(clip, 1, 1, true))
	require.NoError(t, unit.Play())

	time.Sleep(50 * time.Millisecond)
	assert.True(t, unit.IsPlaying(), "looping clip keeps playing past its duration")
	assert.Greater(t, unit.Elapsed(), clip.Duration(), "looping elapsed keeps counting")
}

func TestNullUnitPauseFreezesClock(t *testing.T) {
	t.Parallel()

	unit := &nullUnit{}
	require.NoError(t, unit.Assign(clockClip(500*time.Millisecond), 1, 1, false))
	require.NoError(t, unit.Play())

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, unit.Pause())
	assert.False(t, unit.IsPlaying())

	frozen := unit.Elapsed()
	assert.Greater(t, frozen, time.Duration(0))

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, frozen, unit.Elapsed(), "pause freezes elapsed time")

	require.NoError(t, unit.Resume())
	assert.True(t, unit.IsPlaying())
	require.Eventually(t, func() bool {
		return unit.Elapsed() > frozen
	}, 2*time.Second, 5*time.Millisecond)
}

func TestNullUnitStopResets(t *testing.T) {
	t.Parallel()

	unit := &nullUnit{}
	require.NoError(t, unit.Assign(clockClip(500*time.Millisecond), 1, 1, false))
	require.NoError(t, unit.Play())
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, unit.Stop())
	assert.False(t, unit.IsPlaying())
	assert.Zero(t, unit.Elapsed())
}

func TestNullUnitRequiresAssignment(t *testing.T) {
	t.Parallel()

	unit := &nullUnit{}
	assert.Error(t, unit.Play())
	assert.Error(t, unit.Resume())
	assert.Error(t, unit.Assign(nil, 1, 1, false))
	assert.Error(t, unit.Assign(&testClip{channels: 1, rate: 1000}, 1, 1, false))
}
