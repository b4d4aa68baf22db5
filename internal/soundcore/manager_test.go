package soundcore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/soundpool-go/internal/errors"
)

func countStates(snap Snapshot) (free, busy int) {
	for _, ch := range snap.Channels {
		if ch.State == "free" {
			free++
		} else {
			busy++
		}
	}
	return free, busy
}

func TestPlayReusesChannelForRepeatedName(t *testing.T) {
	h := newTestManager(t, strictConfig())

	require.True(t, h.manager.Play("music"))
	first := h.manager.Snapshot()
	require.Len(t, first.Sessions, 1)
	firstID := first.Sessions["music"]

	require.True(t, h.manager.Play("music"))
	second := h.manager.Snapshot()
	require.Len(t, second.Sessions, 1)
	assert.Equal(t, firstID, second.Sessions["music"], "repeat play must keep the channel identity")

	_, busy := countStates(second)
	assert.Equal(t, 1, busy)
	assert.Equal(t, 2, h.backend.units[firstID].assigns)
	assert.Equal(t, 2, h.backend.units[firstID].plays)
	assert.Equal(t, []string{"start:music", "start:music"}, h.recorder.all())
}

func TestStrictLimitReclaimsOldestBusyChannel(t *testing.T) {
	h := newTestManager(t, strictConfig())

	for i := 0; i < 3; i++ {
		require.True(t, h.manager.PlayOverlapping("click"))
	}
	snap := h.manager.Snapshot()
	assert.Len(t, snap.Channels, 3)
	assert.Empty(t, snap.Sessions, "overlapping plays are not sessions")

	// 4th play interrupts the oldest busy channel
	require.True(t, h.manager.PlayOverlapping("click"))

	snap = h.manager.Snapshot()
	assert.Len(t, snap.Channels, 3, "strict pool must not grow")
	free, busy := countStates(snap)
	assert.Zero(t, free)
	assert.Equal(t, 3, busy)
	assert.Equal(t, 2, h.backend.units[0].assigns)
	assert.Equal(t, 1, h.backend.units[1].assigns)
	assert.Equal(t, 1, h.backend.units[2].assigns)
	assert.Equal(t, []string{
		"start:click", "start:click", "start:click",
		"stop:click", "start:click",
	}, h.recorder.all())

	// reclamation rotates FIFO, so the next victim is channel 1
	require.True(t, h.manager.PlayOverlapping("click"))
	assert.Equal(t, 2, h.backend.units[1].assigns)
}

func TestDynamicOverflowDestroysTemporaryAfterFinish(t *testing.T) {
	h := newTestManager(t, dynamicConfig())

	for i := 0; i < 4; i++ {
		require.True(t, h.manager.PlayOverlapping("click"))
	}
	snap := h.manager.Snapshot()
	require.Len(t, snap.Channels, 4)
	assert.True(t, snap.Channels[3].Temporary)
	assert.Equal(t, 4, h.recorder.count("start"))
	assert.Zero(t, h.recorder.count("stop"), "dynamic overflow must not interrupt anything")

	// click is 500ms; everything completes and the temporary goes away
	h.manager.Tick(h.clock.advance(600 * time.Millisecond))

	snap = h.manager.Snapshot()
	assert.Len(t, snap.Channels, 3, "only the permanent channels remain")
	free, _ := countStates(snap)
	assert.Equal(t, 3, free)
	assert.Equal(t, 4, h.recorder.count("complete"))
	assert.True(t, h.backend.units[3].closed)
	for i := 0; i < 3; i++ {
		assert.False(t, h.backend.units[i].closed)
	}
}

func TestPitchScalesCompletionDeadline(t *testing.T) {
	h := newTestManager(t, strictConfig())

	// 2s clip at pitch 2 finishes at 1s
	require.True(t, h.manager.Play("fast"))

	h.manager.Tick(h.clock.advance(999 * time.Millisecond))
	assert.Zero(t, h.recorder.count("complete"))

	h.manager.Tick(h.clock.advance(1 * time.Millisecond))
	assert.Equal(t, 1, h.recorder.count("complete"))
	assert.Empty(t, h.manager.Snapshot().Sessions)
}

func TestNegativePitchUsesMagnitudeForDeadline(t *testing.T) {
	h := newTestManager(t, strictConfig())

	require.True(t, h.manager.Play("reverse"))
	id := h.manager.Snapshot().Sessions["reverse"]
	assert.Equal(t, -2.0, h.backend.units[id].pitch, "the unit keeps the signed pitch")

	h.manager.Tick(h.clock.advance(time.Second))
	assert.Equal(t, 1, h.recorder.count("complete"))
}

func TestStopCancelsPendingCompletion(t *testing.T) {
	h := newTestManager(t, strictConfig())

	require.True(t, h.manager.Play("music"))
	assert.Equal(t, 1, h.manager.Snapshot().Pending)

	h.clock.advance(500 * time.Millisecond)
	require.True(t, h.manager.Stop("music"))

	snap := h.manager.Snapshot()
	assert.Empty(t, snap.Sessions)
	assert.Zero(t, snap.Pending)

	// far past the original deadline nothing completes
	h.manager.Tick(h.clock.advance(5 * time.Second))
	assert.Equal(t, []string{"start:music", "stop:music"}, h.recorder.all())

	// the channel is immediately reusable
	require.True(t, h.manager.Play("music"))
	free, busy := countStates(h.manager.Snapshot())
	assert.Equal(t, 1, busy)
	assert.Equal(t, 2, free)
}

func TestMuteWithStopPolicyClearsSessions(t *testing.T) {
	cfg := strictConfig()
	cfg.StopOnMute = true
	h := newTestManager(t, cfg)

	require.True(t, h.manager.Play("music"))
	require.True(t, h.manager.Play("click"))

	h.manager.Mute()
	snap := h.manager.Snapshot()
	assert.Empty(t, snap.Sessions)
	assert.Zero(t, snap.Pending)
	assert.Equal(t, []string{
		"start:music", "start:click",
		"stop:click", "stop:music",
	}, h.recorder.all())

	// nothing comes back: the sessions are gone
	h.manager.Unmute()
	assert.Len(t, h.recorder.all(), 4)
	free, busy := countStates(h.manager.Snapshot())
	assert.Zero(t, busy)
	assert.Equal(t, 3, free)
}

func TestMuteWithPausePolicyPreservesElapsed(t *testing.T) {
	h := newTestManager(t, strictConfig())

	require.True(t, h.manager.Play("music"))
	id := h.manager.Snapshot().Sessions["music"]
	unit := h.backend.units[id]
	unit.position = 700 * time.Millisecond

	h.manager.Mute()
	assert.True(t, unit.paused)
	assert.Equal(t, 700*time.Millisecond, unit.position)
	assert.Len(t, h.manager.Snapshot().Sessions, 1, "pause keeps the session")

	h.manager.Unmute()
	assert.False(t, unit.paused)
	assert.True(t, unit.playing)
	assert.Equal(t, 700*time.Millisecond, unit.position, "resume continues from the paused position")
	assert.Equal(t, 1, unit.plays)
	assert.Equal(t, 1, unit.resumes)
	assert.Equal(t, 1, h.recorder.count("start"), "resuming is not a fresh start")
}

func TestStopUnknownNameIsNoOp(t *testing.T) {
	h := newTestManager(t, strictConfig())
	require.True(t, h.manager.Play("music"))
	before := h.manager.Snapshot()

	assert.False(t, h.manager.Stop("nothere"))
	assert.False(t, h.manager.Stop(""))
	// click exists in the catalog but has no session
	assert.False(t, h.manager.Stop("click"))

	after := h.manager.Snapshot()
	assert.Equal(t, before.Sessions, after.Sessions)
	assert.Equal(t, before.Pending, after.Pending)
	assert.Zero(t, h.recorder.count("stop"))
}

func TestPlayWhileMutedStagesSilently(t *testing.T) {
	h := newTestManager(t, strictConfig())
	h.manager.Mute()

	require.True(t, h.manager.Play("music"))
	snap := h.manager.Snapshot()
	require.Len(t, snap.Sessions, 1)
	id := snap.Sessions["music"]
	unit := h.backend.units[id]
	assert.False(t, unit.playing)
	assert.Equal(t, 1, unit.assigns)
	assert.Zero(t, unit.plays)
	assert.Zero(t, snap.Pending, "a staged sound has nothing to complete")
	assert.Zero(t, h.recorder.count("start"))

	h.manager.Unmute()
	assert.True(t, unit.playing)
	assert.Equal(t, 1, h.recorder.count("start"))
	assert.Equal(t, 1, h.manager.Snapshot().Pending)

	// the completion clock runs from the unmute, not the staging
	h.manager.Tick(h.clock.advance(2 * time.Second))
	assert.Equal(t, 1, h.recorder.count("complete"))
}

func TestPlayOverlappingWhileMutedIsDropped(t *testing.T) {
	h := newTestManager(t, strictConfig())
	h.manager.Mute()

	assert.False(t, h.manager.PlayOverlapping("click"))
	free, busy := countStates(h.manager.Snapshot())
	assert.Zero(t, busy)
	assert.Equal(t, 3, free)
}

func TestPlayWhileMutedWithStopPolicyIsDropped(t *testing.T) {
	cfg := strictConfig()
	cfg.StopOnMute = true
	h := newTestManager(t, cfg)
	h.manager.Mute()

	assert.False(t, h.manager.Play("music"))
	assert.Empty(t, h.manager.Snapshot().Sessions)
}

func TestSetVolumeImpliesUnmute(t *testing.T) {
	h := newTestManager(t, strictConfig())

	require.True(t, h.manager.Play("music"))
	id := h.manager.Snapshot().Sessions["music"]
	unit := h.backend.units[id]

	h.manager.Mute()
	require.True(t, unit.paused)
	require.True(t, h.manager.IsMuted())

	h.manager.SetVolume(0.5)
	assert.False(t, h.manager.IsMuted())
	assert.False(t, unit.paused)
	assert.True(t, unit.playing)
	assert.InDelta(t, 0.5, h.manager.GetVolume(), 1e-9)
	// entry volume 0.8 scaled by the new master volume
	assert.InDelta(t, 0.4, unit.volume, 1e-9)
}

func TestSetVolumeClampsRange(t *testing.T) {
	h := newTestManager(t, strictConfig())

	h.manager.SetVolume(1.7)
	assert.InDelta(t, 1.0, h.manager.GetVolume(), 1e-9)

	h.manager.SetVolume(-0.3)
	assert.Zero(t, h.manager.GetVolume())
}

func TestDueCompletionsFireBeforeNewPlay(t *testing.T) {
	cfg := strictConfig()
	cfg.MaxChannels = 1
	cfg.PrewarmChannels = 1
	h := newTestManager(t, cfg)

	require.True(t, h.manager.Play("music"))
	h.clock.advance(2500 * time.Millisecond)

	// no tick ran in between; the play itself settles the elapsed
	// completion first and reuses the freed channel without a reclaim
	require.True(t, h.manager.Play("click"))

	assert.Equal(t, []string{"start:music", "complete:music", "start:click"}, h.recorder.all())
	assert.Equal(t, 2, h.backend.units[0].assigns)
}

func TestCompletionFiresWhilePaused(t *testing.T) {
	h := newTestManager(t, strictConfig())

	require.True(t, h.manager.Play("music"))
	h.manager.Mute()

	h.manager.Tick(h.clock.advance(2 * time.Second))

	snap := h.manager.Snapshot()
	assert.Empty(t, snap.Sessions)
	assert.Equal(t, 1, h.recorder.count("complete"))
	free, busy := countStates(snap)
	assert.Zero(t, busy)
	assert.Equal(t, 3, free)
}

func TestRestartReschedulesCompletion(t *testing.T) {
	h := newTestManager(t, strictConfig())

	require.True(t, h.manager.Play("music"))
	h.clock.advance(1500 * time.Millisecond)
	require.True(t, h.manager.Play("music"))

	// past the original deadline, before the rescheduled one
	h.manager.Tick(h.clock.advance(600 * time.Millisecond))
	assert.Zero(t, h.recorder.count("complete"))

	h.manager.Tick(h.clock.advance(1400 * time.Millisecond))
	assert.Equal(t, 1, h.recorder.count("complete"))
	assert.Empty(t, h.manager.Snapshot().Sessions)
}

func TestLoopingSoundNeverCompletes(t *testing.T) {
	h := newTestManager(t, strictConfig())

	require.True(t, h.manager.Play("ambience"))
	assert.Zero(t, h.manager.Snapshot().Pending)

	h.manager.Tick(h.clock.advance(10 * time.Second))
	assert.Zero(t, h.recorder.count("complete"))
	assert.Len(t, h.manager.Snapshot().Sessions, 1)

	require.True(t, h.manager.Stop("ambience"))
	assert.Empty(t, h.manager.Snapshot().Sessions)
}

func TestManagerDisabledOnInvalidInput(t *testing.T) {
	t.Run("MissingProvider", func(t *testing.T) {
		mgr, err := NewManager(strictConfig(), nil, &fakeBackend{}, WithLogger(discardLogger()))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotInitialized))
		require.NotNil(t, mgr)
		assert.False(t, mgr.Enabled())

		// everything degrades to a safe no-op
		assert.False(t, mgr.Play("music"))
		assert.False(t, mgr.Stop("music"))
		assert.Zero(t, mgr.GetVolume())
		mgr.SetVolume(0.5)
		mgr.StopAll()
		assert.NoError(t, mgr.Close())
	})

	t.Run("ZeroChannels", func(t *testing.T) {
		cfg := strictConfig()
		cfg.MaxChannels = 0
		mgr, err := NewManager(cfg, newFakeProvider(defaultEntries()...), &fakeBackend{}, WithLogger(discardLogger()))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidConfig))
		assert.False(t, mgr.Enabled())
	})

	t.Run("PrewarmBeyondMax", func(t *testing.T) {
		cfg := strictConfig()
		cfg.PrewarmChannels = 5
		_, err := NewManager(cfg, newFakeProvider(defaultEntries()...), &fakeBackend{}, WithLogger(discardLogger()))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidConfig))
	})

	t.Run("BackendFailure", func(t *testing.T) {
		backend := &fakeBackend{failFrom: 2}
		mgr, err := NewManager(strictConfig(), newFakeProvider(defaultEntries()...), backend, WithLogger(discardLogger()))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrPoolExhausted))
		assert.False(t, mgr.Enabled())
	})
}

func TestPreferencePersistence(t *testing.T) {
	t.Run("MuteStateRestoredAtConstruction", func(t *testing.T) {
		store := newMemStore()
		store.ints["music_muted"] = 1
		store.floats["music_volume"] = 0.3

		cfg := strictConfig()
		cfg.ManagerName = "music"
		mgr, err := NewManager(cfg, newFakeProvider(defaultEntries()...), &fakeBackend{},
			WithPreferenceStore(store),
			WithLogger(discardLogger()))
		require.NoError(t, err)
		t.Cleanup(func() { _ = mgr.Close() })

		assert.True(t, mgr.IsMuted())

		// volume is not auto-loaded
		assert.InDelta(t, 1.0, mgr.GetVolume(), 1e-9)
		require.True(t, mgr.LoadVolumeSetting())
		assert.InDelta(t, 0.3, mgr.GetVolume(), 1e-9)
		assert.True(t, mgr.IsMuted(), "loading a volume must not lift the mute")
	})

	t.Run("SaveRoundTrip", func(t *testing.T) {
		h := newTestManager(t, strictConfig())

		h.manager.SetVolume(0.8)
		require.NoError(t, h.manager.SaveVolumeSetting())
		v, ok := h.store.floats["test_volume"]
		require.True(t, ok)
		assert.InDelta(t, 0.8, v, 1e-9)

		h.manager.Mute()
		require.NoError(t, h.manager.SaveMuteSetting())
		assert.Equal(t, 1, h.store.ints["test_muted"])

		h.manager.Unmute()
		require.NoError(t, h.manager.SaveMuteSetting())
		assert.Equal(t, 0, h.store.ints["test_muted"])
	})

	t.Run("LoadMuteAppliesTransition", func(t *testing.T) {
		h := newTestManager(t, strictConfig())
		require.True(t, h.manager.Play("music"))
		id := h.manager.Snapshot().Sessions["music"]

		h.store.ints["test_muted"] = 1
		require.True(t, h.manager.LoadMuteSetting())
		assert.True(t, h.manager.IsMuted())
		assert.True(t, h.backend.units[id].paused)
	})

	t.Run("MissingKeysReportNotFound", func(t *testing.T) {
		h := newTestManager(t, strictConfig())
		assert.False(t, h.manager.LoadVolumeSetting())
		assert.False(t, h.manager.LoadMuteSetting())
	})

	t.Run("WriteFailureSurfaces", func(t *testing.T) {
		h := newTestManager(t, strictConfig())
		h.store.failWrites = true
		assert.Error(t, h.manager.SaveVolumeSetting())
		assert.Error(t, h.manager.SaveMuteSetting())
	})
}

func TestStrictPoolWithoutPrewarmRejectsPlays(t *testing.T) {
	cfg := strictConfig()
	cfg.PrewarmChannels = 0
	h := newTestManager(t, cfg)

	assert.False(t, h.manager.Play("music"))
	assert.Empty(t, h.manager.Snapshot().Sessions)
	assert.Empty(t, h.recorder.all())
}

func TestDynamicPoolSurvivesUnitCreationFailure(t *testing.T) {
	h := newTestManager(t, dynamicConfig())
	h.backend.failFrom = 3

	for i := 0; i < 3; i++ {
		require.True(t, h.manager.PlayOverlapping("click"))
	}
	assert.False(t, h.manager.PlayOverlapping("click"), "temporary creation fails when the engine is out of voices")

	snap := h.manager.Snapshot()
	assert.Len(t, snap.Channels, 3, "a failed acquire must not corrupt the pool")
	_, busy := countStates(snap)
	assert.Equal(t, 3, busy)
}

func TestCloseStopsEverythingOnce(t *testing.T) {
	h := newTestManager(t, dynamicConfig())
	require.True(t, h.manager.Play("music"))
	require.True(t, h.manager.PlayOverlapping("click"))

	require.NoError(t, h.manager.Close())
	assert.Equal(t, 2, h.recorder.count("stop"))
	for _, u := range h.backend.units {
		assert.True(t, u.closed)
	}
	assert.False(t, h.manager.Enabled())
	assert.False(t, h.manager.Play("music"))

	require.NoError(t, h.manager.Close())
	assert.Equal(t, 2, h.recorder.count("stop"), "second close must not re-notify")
}

func TestEventSinkSeesInstanceLifecycle(t *testing.T) {
	h := newTestManager(t, strictConfig())

	require.True(t, h.manager.Play("music"))
	require.True(t, h.manager.Play("music"))
	require.True(t, h.manager.Stop("music"))

	events := h.sink.all()
	require.Len(t, events, 3)
	assert.Equal(t, "started", events[0].kind)
	assert.Equal(t, "started", events[1].kind)
	assert.Equal(t, "stopped", events[2].kind)
	assert.Equal(t, "test", events[0].manager)
	assert.Equal(t, "music", events[0].sound)
	assert.NotEmpty(t, events[0].instanceID)
	assert.NotEqual(t, events[0].instanceID, events[1].instanceID, "a restart is a new playback instance")
	assert.Equal(t, events[1].instanceID, events[2].instanceID, "the stop belongs to the restarted instance")
	assert.Equal(t, events[0].channelID, events[1].channelID)
}

func TestObserverAddRemove(t *testing.T) {
	h := newTestManager(t, strictConfig())
	extra := &recorder{}
	h.manager.AddObserver(extra)

	require.True(t, h.manager.Play("music"))
	assert.Equal(t, 1, extra.count("start"))

	h.manager.RemoveObserver(extra)
	require.True(t, h.manager.Play("click"))
	assert.Equal(t, 1, extra.count("start"))
	assert.Equal(t, 2, h.recorder.count("start"))
}

func TestLookupByNumericID(t *testing.T) {
	h := newTestManager(t, strictConfig())

	require.True(t, h.manager.Play("1"))
	assert.Contains(t, h.manager.Snapshot().Sessions, "music")

	require.True(t, h.manager.Stop("1"))
	assert.Empty(t, h.manager.Snapshot().Sessions)
}

func TestPlayUnknownSoundReturnsFalse(t *testing.T) {
	h := newTestManager(t, strictConfig())

	assert.False(t, h.manager.Play("missing"))
	assert.False(t, h.manager.Play(""))
	assert.Empty(t, h.recorder.all())
}

func TestToggleMute(t *testing.T) {
	h := newTestManager(t, strictConfig())

	assert.True(t, h.manager.ToggleMute())
	assert.True(t, h.manager.IsMuted())
	assert.False(t, h.manager.ToggleMute())
	assert.False(t, h.manager.IsMuted())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	h := newTestManager(t, strictConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.manager.Run(ctx, 5*time.Millisecond)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
