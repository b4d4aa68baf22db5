// Package soundcore implements the channel pool and playback-session
// lifecycle manager at the heart of soundpool-go. Given a catalog of named
// sound assets it allocates playback channels on demand, enforces
// per-sound-name singleton playback when requested, tracks each channel's
// lifetime so it becomes reusable exactly when playback ends, and applies
// global mute/pause/resume semantics without leaking or double-freeing
// channels.
//
// # Architecture Overview
//
// The package consists of a small set of components fronted by a Manager
// facade:
//
//   - Channel: one playback resource wrapping an engine output unit
//   - channelPool: acquisition and reclamation under a capacity policy
//   - completionScheduler: cancellable one-shot timers at clip end
//   - player: non-overlap session table and play/stop/pause semantics
//   - muteController: stop-on-mute vs pause-on-mute policy
//
// External collaborators are consumed through interfaces only: EntryProvider
// resolves names to SoundEntry values, Backend creates OutputUnit handles,
// and PreferenceStore persists volume/mute settings per manager name.
//
// # Capacity Policies
//
// Two mutually exclusive pool policies are supported. The strict-limit
// policy keeps a fixed set of pre-warmed channels and, when all are busy,
// forcibly reclaims the oldest busy channel in FIFO order, interrupting its
// sound. The dynamic-overflow policy grows the pool up to MaxChannels and
// absorbs further demand with temporary channels that are destroyed once
// their playback finishes.
//
// # Concurrency Model
//
// All pool, session, and scheduler state is serialized behind a single
// Manager mutex. A periodic Tick drives the scheduler; within one tick,
// every completion whose deadline has elapsed fires before any play request
// issued after that tick is processed. Cancellation is synchronous: by the
// time Stop or a reassignment returns, no stale completion can act on the
// channel, because every scheduled completion carries the assignment
// generation it was created for and is ignored on mismatch.
//
// Observer notifications and event-sink publishes fire synchronously but
// outside the mutex, so observers may safely call back into the Manager.
package soundcore
