// Package play implements one-shot playback: open the engine, play a
// single catalog entry, wait for it to finish, exit.
package play

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/soundpool-go/internal/catalog"
	"github.com/tphakala/soundpool-go/internal/conf"
	"github.com/tphakala/soundpool-go/internal/engine"
	"github.com/tphakala/soundpool-go/internal/errors"
	"github.com/tphakala/soundpool-go/internal/soundcore"
)

// completionMargin pads the clip duration so scheduler granularity never
// turns a clean completion into a timeout.
const completionMargin = time.Second

// Command creates the play command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		timeout time.Duration
		volume  float64
	)

	cmd := &cobra.Command{
		Use:   "play [sound]",
		Short: "Play one catalog entry and exit",
		Long:  "Plays a single sound from the catalog, by name or id, and waits for it to finish.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings, args[0], timeout, volume)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Stop after this long, 0 waits for the clip to finish")
	cmd.Flags().Float64Var(&volume, "volume", 1.0, "Master volume between 0.0 and 1.0")

	return cmd
}

func run(settings *conf.Settings, nameOrID string, timeout time.Duration, volume float64) error {
	cat, err := catalog.New(catalog.Config{
		Path:     settings.Catalog.Path,
		CacheTTL: settings.Catalog.CacheTTL,
	}, nil)
	if err != nil {
		return err
	}
	defer cat.Close()

	entry, ok := cat.Lookup(nameOrID)
	if !ok {
		return errors.Newf("sound %q is not in the catalog", nameOrID).
			Component("play").
			Category(errors.CategoryNotFound).
			Context("sound", nameOrID).
			Build()
	}

	if entry.Loop && timeout <= 0 {
		return errors.Newf("%q loops forever, pass --timeout to bound playback", entry.Name).
			Component("play").
			Category(errors.CategoryValidation).
			Context("sound", entry.Name).
			Build()
	}

	backend, err := engine.New(settings, nil, nil)
	if err != nil {
		return err
	}
	defer backend.Close()

	waiter := newCompletionWaiter(entry.Name)

	manager, err := soundcore.NewManager(soundcore.Config{
		ManagerName:  "play",
		MaxChannels:  1,
		MasterVolume: volume,
	}, cat, backend, soundcore.WithObserver(waiter))
	if err != nil {
		return err
	}
	defer manager.Close()

	if !manager.Play(entry.Name) {
		return errors.Newf("failed to start %q", entry.Name).
			Component("play").
			Category(errors.CategoryPlayback).
			Context("sound", entry.Name).
			Build()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go manager.Run(ctx, settings.TickIntervalOrDefault())

	wait := timeout
	if wait <= 0 {
		wait = entry.Clip.Duration() + completionMargin
	}

	select {
	case <-waiter.done:
		fmt.Printf("Played %s (%v)\n", entry.Name, entry.Clip.Duration().Round(time.Millisecond))
		return nil

	case <-time.After(wait):
		manager.Stop(entry.Name)
		if entry.Loop {
			// A bounded loop is the requested behavior, not a failure.
			fmt.Printf("Played %s for %v\n", entry.Name, wait)
			return nil
		}
		return errors.Newf("timed out after %v waiting for %q to finish", wait, entry.Name).
			Component("play").
			Category(errors.CategoryTimeout).
			Context("sound", entry.Name).
			Build()

	case <-ctx.Done():
		manager.StopAll()
		fmt.Println("Interrupted")
		return nil
	}
}

// completionWaiter signals once when the target sound ends, by completion
// or by stop.
type completionWaiter struct {
	target string
	once   sync.Once
	done   chan struct{}
}

func newCompletionWaiter(target string) *completionWaiter {
	return &completionWaiter{target: target, done: make(chan struct{})}
}

func (w *completionWaiter) OnAudioStart(string) {}

func (w *completionWaiter) OnAudioComplete(name string) {
	if name == w.target {
		w.once.Do(func() { close(w.done) })
	}
}

func (w *completionWaiter) OnAudioStop(name string) {
	if name == w.target {
		w.once.Do(func() { close(w.done) })
	}
}
