package soundcore

import (
	"time"
)

// playRoute is how a play request behaves under the current mute state.
type playRoute int

const (
	routeAudible playRoute = iota
	routeStage
	routeDrop
)

// muteController is the two-state mute machine. Transitions apply the
// configured stop-versus-pause policy through the player; the Manager asks
// it how to route incoming play requests while muted.
type muteController struct {
	stopOnMute bool
	muted      bool
}

// mute transitions to the muted state. With stopOnMute the sessions are
// destroyed and cannot be recovered by unmute; otherwise they are paused in
// place. Already muted is a no-op.
func (mc *muteController) mute(pl *player) []notification {
	if mc.muted {
		return nil
	}
	mc.muted = true
	if mc.stopOnMute {
		return pl.stopAll()
	}
	pl.pauseAll()
	return nil
}

// unmute transitions back to unmuted. With stopOnMute there is nothing to
// resume; otherwise paused sessions continue from their preserved position
// and staged sessions start from zero.
func (mc *muteController) unmute(pl *player, now time.Time) []notification {
	if !mc.muted {
		return nil
	}
	mc.muted = false
	if mc.stopOnMute {
		return nil
	}
	return pl.resumeAll(now)
}

// routePlay decides what happens to a play request right now. While muted
// with the pause policy, non-overlapping plays are staged silently so the
// session survives to the next unmute. Overlapping instances are never
// sessions, so a staged one could never be resumed; those are dropped, as
// is everything while muted under the stop policy.
func (mc *muteController) routePlay(overlap bool) playRoute {
	if !mc.muted {
		return routeAudible
	}
	if mc.stopOnMute || overlap {
		return routeDrop
	}
	return routeStage
}
