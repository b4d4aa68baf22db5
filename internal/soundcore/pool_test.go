package soundcore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/soundpool-go/internal/errors"
)

func newTestPool(t *testing.T, cfg Config) (*channelPool, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{}
	pool, err := newChannelPool(&cfg, backend, discardLogger(), nil)
	require.NoError(t, err)
	t.Cleanup(pool.close)
	return pool, backend
}

func TestPoolStrictAcquireReclaimsFIFO(t *testing.T) {
	pool, _ := newTestPool(t, strictConfig())

	a, reclaimed, err := pool.acquire()
	require.NoError(t, err)
	assert.False(t, reclaimed)
	assert.Equal(t, 0, a.id)

	b, _, err := pool.acquire()
	require.NoError(t, err)
	assert.Equal(t, 1, b.id)

	c, _, err := pool.acquire()
	require.NoError(t, err)
	assert.Equal(t, 2, c.id)

	// all busy: the oldest is reclaimed, then rotated to the back
	v, reclaimed, err := pool.acquire()
	require.NoError(t, err)
	assert.True(t, reclaimed)
	assert.Equal(t, 0, v.id)

	v, reclaimed, err = pool.acquire()
	require.NoError(t, err)
	assert.True(t, reclaimed)
	assert.Equal(t, 1, v.id)
}

func TestPoolStrictAcquireFailsWithoutPrewarm(t *testing.T) {
	cfg := strictConfig()
	cfg.PrewarmChannels = 0
	pool, _ := newTestPool(t, cfg)

	_, _, err := pool.acquire()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestPoolReleaseRecyclesOldestFirst(t *testing.T) {
	pool, _ := newTestPool(t, strictConfig())

	a, _, err := pool.acquire()
	require.NoError(t, err)
	b, _, err := pool.acquire()
	require.NoError(t, err)

	pool.release(a)
	pool.release(b)

	next, _, err := pool.acquire()
	require.NoError(t, err)
	assert.Equal(t, a.id, next.id, "free queue hands back the oldest release first")
}

func TestPoolDynamicGrowsThenCreatesTemporaries(t *testing.T) {
	cfg := dynamicConfig()
	cfg.PrewarmChannels = 1
	pool, backend := newTestPool(t, cfg)
	assert.Len(t, pool.channels, 1)

	for i := 0; i < 3; i++ {
		ch, reclaimed, err := pool.acquire()
		require.NoError(t, err)
		assert.False(t, reclaimed, "dynamic pools never reclaim")
		assert.False(t, ch.temporary)
	}

	overflow, _, err := pool.acquire()
	require.NoError(t, err)
	assert.True(t, overflow.temporary)
	assert.Len(t, backend.units, 4)
}

func TestPoolReleaseDestroysTemporary(t *testing.T) {
	cfg := dynamicConfig()
	cfg.MaxChannels = 1
	cfg.PrewarmChannels = 1
	pool, backend := newTestPool(t, cfg)

	perm, _, err := pool.acquire()
	require.NoError(t, err)
	temp, _, err := pool.acquire()
	require.NoError(t, err)
	require.True(t, temp.temporary)

	pool.release(temp)
	assert.Len(t, pool.channels, 1)
	assert.True(t, backend.units[temp.id].closed)

	pool.release(perm)
	assert.Len(t, pool.channels, 1, "permanent channels are recycled")
	assert.False(t, backend.units[perm.id].closed)
}

func TestPoolReleaseDestroysOverCapacityPermanent(t *testing.T) {
	cfg := dynamicConfig()
	cfg.MaxChannels = 2
	cfg.PrewarmChannels = 2
	pool, backend := newTestPool(t, cfg)

	a, _, err := pool.acquire()
	require.NoError(t, err)
	_, _, err = pool.acquire()
	require.NoError(t, err)
	temp, _, err := pool.acquire()
	require.NoError(t, err)
	require.True(t, temp.temporary)

	// while the temporary keeps the pool over capacity, a released
	// permanent is destroyed instead of recycled
	pool.release(a)
	assert.Len(t, pool.channels, 2)
	assert.True(t, backend.units[a.id].closed)
}

func TestPoolSetMasterVolumeRescalesAssignments(t *testing.T) {
	pool, backend := newTestPool(t, strictConfig())

	ch, _, err := pool.acquire()
	require.NoError(t, err)
	entry := SoundEntry{Name: "s", Clip: &fakeClip{duration: time.Second}, Volume: 0.5, Pitch: 1}
	require.NoError(t, ch.assign(entry, "i-1", false, pool.masterVolume))
	assert.InDelta(t, 0.5, backend.units[ch.id].volume, 1e-9)

	pool.setMasterVolume(0.4)
	assert.InDelta(t, 0.2, backend.units[ch.id].volume, 1e-9)
}

func TestPoolCleanupReapsEngineFinishedTemporaries(t *testing.T) {
	cfg := dynamicConfig()
	cfg.MaxChannels = 1
	cfg.PrewarmChannels = 1
	pool, backend := newTestPool(t, cfg)

	perm, _, err := pool.acquire()
	require.NoError(t, err)
	require.NoError(t, perm.assign(testEntry("x", time.Second), "i-1", true, 1))
	require.NoError(t, perm.unit.Play())
	perm.started = true

	temp, _, err := pool.acquire()
	require.NoError(t, err)
	require.True(t, temp.temporary)
	require.NoError(t, temp.assign(testEntry("y", time.Second), "i-2", true, 1))
	require.NoError(t, temp.unit.Play())
	temp.started = true

	// the engine ran out of audio on the temporary before any completion
	backend.units[temp.id].playing = false

	reaped := pool.cleanupFinished()
	require.Len(t, reaped, 1)
	assert.Equal(t, temp.id, reaped[0].channelID)
	assert.Equal(t, "y", reaped[0].name)
	assert.Equal(t, "i-2", reaped[0].instanceID)
	assert.Len(t, pool.channels, 1)
	assert.True(t, backend.units[temp.id].closed)
}

func TestPoolCleanupSkipsStagedPausedAndLooping(t *testing.T) {
	cfg := dynamicConfig()
	cfg.MaxChannels = 1
	cfg.PrewarmChannels = 0
	pool, _ := newTestPool(t, cfg)

	perm, _, err := pool.acquire()
	require.NoError(t, err)
	require.NoError(t, perm.assign(testEntry("x", time.Second), "i-1", true, 1))

	staged, _, err := pool.acquire()
	require.NoError(t, err)
	require.True(t, staged.temporary)
	require.NoError(t, staged.assign(testEntry("y", time.Second), "i-2", true, 1))
	// never started: not playing, but not finished either
	assert.Empty(t, pool.cleanupFinished())

	// paused mid-clip
	staged.started = true
	require.NoError(t, staged.unit.Play())
	require.NoError(t, staged.unit.Pause())
	staged.paused = true
	assert.Empty(t, pool.cleanupFinished())

	// looping assignments idle between repeats are not finished
	staged.paused = false
	staged.loop = true
	assert.Empty(t, pool.cleanupFinished())

	assert.Len(t, pool.channels, 2)
}
