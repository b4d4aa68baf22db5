package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/host"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/soundpool-go/internal/api"
	"github.com/tphakala/soundpool-go/internal/buildinfo"
	"github.com/tphakala/soundpool-go/internal/catalog"
	"github.com/tphakala/soundpool-go/internal/conf"
	"github.com/tphakala/soundpool-go/internal/engine"
	"github.com/tphakala/soundpool-go/internal/errors"
	"github.com/tphakala/soundpool-go/internal/events"
	"github.com/tphakala/soundpool-go/internal/logging"
	"github.com/tphakala/soundpool-go/internal/mqtt"
	"github.com/tphakala/soundpool-go/internal/notify"
	"github.com/tphakala/soundpool-go/internal/observability"
	"github.com/tphakala/soundpool-go/internal/prefs"
	"github.com/tphakala/soundpool-go/internal/soundcore"
	"github.com/tphakala/soundpool-go/internal/telemetry"
)

const (
	// busShutdownTimeout bounds the drain of queued events at shutdown.
	busShutdownTimeout = 5 * time.Second
	// sentryFlushTimeout bounds the final telemetry flush.
	sentryFlushTimeout = 3 * time.Second
	// brokerConnectTimeout bounds one MQTT connection attempt.
	brokerConnectTimeout = 30 * time.Second
	// snapshotLogInterval paces the pool state dump under --debug.
	snapshotLogInterval = 30 * time.Second
)

// Run wires the daemon together and blocks until a termination signal.
func Run(settings *conf.Settings) error {
	logger := logging.ForService("daemon")
	if logger == nil {
		logger = slog.Default().With("service", "daemon")
	}

	// Log platform details the way bug reports need them.
	if info, err := host.Info(); err == nil {
		logger.Info("starting soundpool daemon",
			"version", settings.Version,
			"os", info.OS,
			"platform", info.Platform,
			"platform_version", info.PlatformVersion)
	} else {
		logger.Info("starting soundpool daemon", "version", settings.Version)
	}

	// Settings shape is validated at load time; preflight checks that the
	// environment matches what the settings promise.
	check := preflight(settings)
	for _, w := range check.Warnings {
		logger.Warn("preflight warning", "warning", w)
	}
	if !check.Valid {
		for _, e := range check.Errors {
			logger.Error("preflight check failed", "error", e)
		}
		return errors.Newf("daemon preflight failed: %s", strings.Join(check.Errors, "; ")).
			Component("daemon").
			Category(errors.CategoryConfiguration).
			Build()
	}

	// Initialize Prometheus metrics manager
	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("error initializing metrics: %w", err)
	}

	// The event bus fans playback and error events out to the consumers
	// registered below. Built errors publish themselves through the
	// adapter, so this must be wired before any component can fail.
	bus, err := events.Initialize(nil)
	if err != nil {
		return fmt.Errorf("error initializing event bus: %w", err)
	}
	errors.SetEventPublisher(events.NewEventPublisherAdapter(bus))

	if err := telemetry.Init(settings); err != nil {
		return err
	}
	if settings.Sentry.Enabled {
		if err := bus.RegisterConsumer(telemetry.NewWorker(true, nil)); err != nil {
			logger.Warn("failed to register telemetry worker", "error", err)
		}
	}

	if settings.Notification.Enabled {
		if err := registerNotifier(bus, settings); err != nil {
			return err
		}
	}

	var broker mqtt.Client
	if settings.MQTT.Enabled {
		broker, err = registerBroker(bus, settings, metrics)
		if err != nil {
			return err
		}
	}

	store := prefs.New(settings)
	if err := store.Open(); err != nil {
		return err
	}
	defer closeStore(store, logger)

	cat, err := openCatalog(settings, logger)
	if err != nil {
		return err
	}
	defer cat.Close()

	backend, err := engine.New(settings, metrics.Engine, nil)
	if err != nil {
		return err
	}
	defer closeBackend(backend, logger)

	managers, err := buildManagers(settings, cat, backend, store, metrics, bus, logger)
	if err != nil {
		return err
	}
	defer closeManagers(managers, logger)

	// ctx cancels on signal and stops the tick loops; quitChan follows and
	// drains the HTTP servers.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	quitChan := make(chan struct{})
	var wg sync.WaitGroup

	if settings.Telemetry.Enabled {
		if err := startTelemetryEndpoint(&wg, settings, metrics, quitChan); err != nil {
			return err
		}
	}

	if settings.WebServer.Enabled {
		if err := startControlAPI(&wg, settings, managers, cat, backend, metrics, quitChan); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	interval := settings.TickIntervalOrDefault()
	for _, m := range managers {
		g.Go(func() error {
			m.Run(gctx, interval)
			return nil
		})
	}
	if broker != nil {
		g.Go(func() error {
			connectBroker(gctx, broker, logger)
			return nil
		})
	}
	if settings.Debug {
		g.Go(func() error {
			logSnapshots(gctx, managers, logger)
			return nil
		})
	}

	logger.Info("daemon ready",
		"pools", len(managers),
		"engine", backend.Name(),
		"tick_interval", interval,
		"api", settings.WebServer.Enabled,
		"mqtt", settings.MQTT.Enabled)

	<-gctx.Done()
	logger.Info("shutting down")

	// Servers stop first so no new play requests arrive, then the tick
	// loops, then the managers so their final stop events still reach the
	// bus before it drains.
	close(quitChan)
	_ = g.Wait()
	closeManagers(managers, logger)
	wg.Wait()

	if err := bus.Shutdown(busShutdownTimeout); err != nil {
		logger.Warn("event bus shutdown incomplete", "error", err)
	}
	if broker != nil {
		broker.Disconnect()
	}
	telemetry.Flush(sentryFlushTimeout)

	logger.Info("shutdown complete")
	return nil
}

// preflight validates the runtime environment before anything is wired.
func preflight(settings *conf.Settings) *buildinfo.ValidationResult {
	result := buildinfo.NewValidationResult()

	if _, err := os.Stat(settings.Catalog.Path); err != nil {
		result.AddError(fmt.Sprintf("catalog file %s is not readable: %v", settings.Catalog.Path, err))
	}

	if settings.Preferences.SQLite.Enabled {
		dir := filepath.Dir(settings.Preferences.SQLite.Path)
		if _, err := os.Stat(dir); err != nil {
			result.AddWarning(fmt.Sprintf("preference database directory %s does not exist yet", dir))
		}
	}

	if settings.Playback.Engine == "null" {
		result.AddWarning("null playback engine selected, audio output is disabled")
	}

	return result
}

// registerNotifier attaches the push notification consumer to the bus.
func registerNotifier(bus *events.EventBus, settings *conf.Settings) error {
	sender, err := notify.NewShoutrrrSender(settings.Notification.Urls, settings.Notification.Timeout)
	if err != nil {
		return err
	}
	consumer, err := notify.NewConsumer(sender, settings.Notification.MinPriority)
	if err != nil {
		return err
	}
	return bus.RegisterConsumer(consumer)
}

// registerBroker creates the MQTT client and attaches its playback event
// consumer to the bus. The connection itself is dialed later, under the
// daemon's lifecycle context.
func registerBroker(bus *events.EventBus, settings *conf.Settings, metrics *observability.Metrics) (mqtt.Client, error) {
	broker, err := mqtt.NewClient(settings, metrics.MQTT)
	if err != nil {
		return nil, err
	}
	if err := bus.RegisterConsumer(mqtt.NewConsumer(broker, settings.MQTT.Topic)); err != nil {
		return nil, err
	}
	return broker, nil
}

// connectBroker dials the broker until it succeeds or the daemon stops.
// After the first successful connect the client handles reconnects itself.
func connectBroker(ctx context.Context, broker mqtt.Client, logger *slog.Logger) {
	backoff := 10 * time.Second
	const maxBackoff = 5 * time.Minute

	for {
		connectCtx, cancel := context.WithTimeout(ctx, brokerConnectTimeout)
		err := broker.Connect(connectCtx)
		cancel()
		if err == nil {
			return
		}

		logger.Warn("MQTT broker connection failed", "error", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
			backoff = min(backoff*2, maxBackoff)
		}
	}
}

// logSnapshots periodically dumps pool state while debug logging is on.
func logSnapshots(ctx context.Context, managers []*soundcore.Manager, logger *slog.Logger) {
	ticker := time.NewTicker(snapshotLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, m := range managers {
				snap := m.Snapshot()
				busy := 0
				for _, ch := range snap.Channels {
					if ch.State == "busy" {
						busy++
					}
				}
				logger.Debug("pool state",
					"manager", snap.Manager,
					"channels", len(snap.Channels),
					"busy", busy,
					"sessions", len(snap.Sessions),
					"pending", snap.Pending,
					"volume", snap.MasterVolume,
					"muted", snap.Muted)
			}
		}
	}
}

// openCatalog loads the catalog with reload logging attached.
func openCatalog(settings *conf.Settings, logger *slog.Logger) (*catalog.Catalog, error) {
	var cat *catalog.Catalog
	cat, err := catalog.New(catalog.Config{
		Path:     settings.Catalog.Path,
		Watch:    settings.Catalog.Watch,
		Preload:  settings.Catalog.Preload,
		CacheTTL: settings.Catalog.CacheTTL,
		OnReload: func() {
			logger.Info("catalog reloaded", "entries", cat.Len())
		},
	}, nil)
	return cat, err
}

// buildManagers creates one playback manager per configured pool, restoring
// any persisted master volume. Mute state restores inside the constructor.
func buildManagers(settings *conf.Settings, cat *catalog.Catalog, backend engine.Backend, store prefs.Store, metrics *observability.Metrics, bus *events.EventBus, logger *slog.Logger) ([]*soundcore.Manager, error) {
	sink := events.NewPlaybackSinkAdapter(bus)

	managers := make([]*soundcore.Manager, 0, len(settings.Pools))
	for i := range settings.Pools {
		p := &settings.Pools[i]
		m, err := soundcore.NewManager(soundcore.Config{
			ManagerName:     p.Name,
			MaxChannels:     p.MaxChannels,
			PrewarmChannels: p.PrewarmChannels,
			StrictLimit:     p.StrictLimit,
			StopOnMute:      p.StopOnMute,
			MasterVolume:    p.MasterVolume,
		}, cat, backend,
			soundcore.WithPreferenceStore(store),
			soundcore.WithMetrics(metrics.SoundCore),
			soundcore.WithEventSink(sink),
		)
		if err != nil {
			closeManagers(managers, logger)
			return nil, err
		}
		if m.LoadVolumeSetting() {
			logger.Debug("restored master volume", "manager", m.Name(), "volume", m.GetVolume())
		}
		managers = append(managers, m)
	}
	return managers, nil
}

// startTelemetryEndpoint starts the Prometheus scrape listener.
func startTelemetryEndpoint(wg *sync.WaitGroup, settings *conf.Settings, metrics *observability.Metrics, quitChan chan struct{}) error {
	endpoint, err := observability.NewEndpoint(settings, metrics)
	if err != nil {
		return fmt.Errorf("error initializing telemetry endpoint: %w", err)
	}
	endpoint.Start(wg, quitChan)
	return nil
}

// startControlAPI starts the HTTP control surface.
func startControlAPI(wg *sync.WaitGroup, settings *conf.Settings, managers []*soundcore.Manager, cat *catalog.Catalog, backend engine.Backend, metrics *observability.Metrics, quitChan chan struct{}) error {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	controller, err := api.New(e, settings, managers, cat,
		api.WithBackend(backend),
		api.WithMetrics(metrics))
	if err != nil {
		return err
	}
	controller.Start(wg, quitChan)
	return nil
}

func closeStore(store prefs.Store, logger *slog.Logger) {
	if err := store.Close(); err != nil {
		logger.Error("failed to close preference store", "error", err)
	}
}

func closeBackend(backend engine.Backend, logger *slog.Logger) {
	if err := backend.Close(); err != nil {
		logger.Error("failed to close audio backend", "error", err)
	}
}

// closeManagers closes every manager. Close is idempotent, so the deferred
// backstop after an ordered shutdown is a no-op.
func closeManagers(managers []*soundcore.Manager, logger *slog.Logger) {
	for _, m := range managers {
		if err := m.Close(); err != nil {
			logger.Error("failed to close sound manager", "manager", m.Name(), "error", err)
		}
	}
}
