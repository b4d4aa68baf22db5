package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/tphakala/soundpool-go/internal/errors"
	"github.com/tphakala/soundpool-go/internal/soundcore"
)

// rateLimitWindow is how long an idle client's limiter survives in the
// in-memory store.
const rateLimitWindow = 3 * time.Minute

// PlaybackResult reports the outcome of one control action.
type PlaybackResult struct {
	Success   bool      `json:"success"`
	Action    string    `json:"action"`
	Pool      string    `json:"pool"`
	Sound     string    `json:"sound,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// VolumeRequest is the body of a volume update.
type VolumeRequest struct {
	Volume float64 `json:"volume"`
}

// VolumeState reports a pool's current volume and mute state.
type VolumeState struct {
	Pool   string  `json:"pool"`
	Volume float64 `json:"volume"`
	Muted  bool    `json:"muted"`
}

// MuteRequest is the body of a mute update.
type MuteRequest struct {
	Muted bool `json:"muted"`
}

// initPoolRoutes registers the per-pool playback control endpoints.
func (c *Controller) initPoolRoutes() {
	g := c.Group.Group("/pools")

	g.GET("", c.ListPools)
	g.GET("/:pool", c.GetPoolStatus)

	// Play is the only endpoint clients hammer, so the rate limiter
	// guards just it.
	var playMiddleware []echo.MiddlewareFunc
	if c.Settings.WebServer.RateLimit.Enabled {
		playMiddleware = append(playMiddleware, c.playRateLimiter())
	}
	g.POST("/:pool/play/:sound", c.PlaySound, playMiddleware...)

	g.POST("/:pool/stop/:sound", c.StopSound)
	g.POST("/:pool/stop", c.StopAllSounds)
	g.POST("/:pool/pause", c.PausePool)
	g.POST("/:pool/resume", c.ResumePool)

	g.GET("/:pool/volume", c.GetPoolVolume)
	g.PUT("/:pool/volume", c.SetPoolVolume)
	g.GET("/:pool/mute", c.GetPoolMute)
	g.PUT("/:pool/mute", c.SetPoolMute)
	g.POST("/:pool/mute/toggle", c.TogglePoolMute)
}

// playRateLimiter throttles play requests per client IP using the
// configured sustained rate and burst.
func (c *Controller) playRateLimiter() echo.MiddlewareFunc {
	rl := c.Settings.WebServer.RateLimit
	burst := rl.Burst
	if burst < 1 {
		burst = 1
	}

	config := middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(rl.RPS),
				Burst:     burst,
				ExpiresIn: rateLimitWindow,
			},
		),
		IdentifierExtractor: middleware.DefaultRateLimiterConfig.IdentifierExtractor,
		ErrorHandler: func(ctx echo.Context, err error) error {
			return ctx.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded for play requests",
			})
		},
		DenyHandler: func(ctx echo.Context, identifier string, err error) error {
			if c.metrics != nil && c.metrics.HTTP != nil {
				c.metrics.HTTP.RecordRateLimitRejection(ctx.Path())
			}
			return ctx.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Too many play requests, please slow down",
			})
		},
	}

	return middleware.RateLimiterWithConfig(config)
}

// managerFor resolves the :pool path parameter.
func (c *Controller) managerFor(ctx echo.Context) (*soundcore.Manager, bool) {
	m, ok := c.managers[ctx.Param("pool")]
	return m, ok
}

func (c *Controller) poolNotFound(ctx echo.Context) error {
	name := ctx.Param("pool")
	return c.HandleError(ctx, errors.Newf("unknown pool: %q", name).
		Component("api").
		Category(errors.CategoryNotFound).
		Context("pool", name).
		Build(),
		"Pool not found", http.StatusNotFound)
}

// ListPools returns a snapshot of every pool in configuration order.
func (c *Controller) ListPools(ctx echo.Context) error {
	snapshots := make([]soundcore.Snapshot, 0, len(c.order))
	for _, name := range c.order {
		snapshots = append(snapshots, c.managers[name].Snapshot())
	}
	return ctx.JSON(http.StatusOK, snapshots)
}

// GetPoolStatus returns one pool's snapshot.
func (c *Controller) GetPoolStatus(ctx echo.Context) error {
	m, ok := c.managerFor(ctx)
	if !ok {
		return c.poolNotFound(ctx)
	}
	return ctx.JSON(http.StatusOK, m.Snapshot())
}

// PlaySound starts the named sound on the pool. The overlap query
// parameter requests an independent instance instead of a restart.
func (c *Controller) PlaySound(ctx echo.Context) error {
	m, ok := c.managerFor(ctx)
	if !ok {
		return c.poolNotFound(ctx)
	}

	sound := ctx.Param("sound")
	if _, known := c.catalog.Lookup(sound); !known {
		return c.HandleError(ctx, errors.Newf("unknown sound: %q", sound).
			Component("api").
			Category(errors.CategoryNotFound).
			Context("sound", sound).
			Build(),
			"Sound not found", http.StatusNotFound)
	}

	overlap, _ := strconv.ParseBool(ctx.QueryParam("overlap"))

	var started bool
	action := "play"
	if overlap {
		action = "play_overlapping"
		started = m.PlayOverlapping(sound)
	} else {
		started = m.Play(sound)
	}

	if !started {
		// The sound exists, so the pool refused it: muted with a
		// stop-on-mute policy, or already closed.
		return c.HandleError(ctx, errors.Newf("pool %q rejected play of %q", m.Name(), sound).
			Component("api").
			Category(errors.CategoryState).
			Context("pool", m.Name()).
			Context("sound", sound).
			Build(),
			"Pool rejected the play request", http.StatusConflict)
	}

	return ctx.JSON(http.StatusOK, PlaybackResult{
		Success:   true,
		Action:    action,
		Pool:      m.Name(),
		Sound:     sound,
		Message:   "Playback started",
		Timestamp: time.Now(),
	})
}

// StopSound stops every playing instance of the named sound.
func (c *Controller) StopSound(ctx echo.Context) error {
	m, ok := c.managerFor(ctx)
	if !ok {
		return c.poolNotFound(ctx)
	}

	sound := ctx.Param("sound")
	stopped := m.Stop(sound)

	message := "Nothing was playing"
	if stopped {
		message = "Playback stopped"
	}

	return ctx.JSON(http.StatusOK, PlaybackResult{
		Success:   stopped,
		Action:    "stop",
		Pool:      m.Name(),
		Sound:     sound,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// StopAllSounds stops everything the pool is playing.
func (c *Controller) StopAllSounds(ctx echo.Context) error {
	m, ok := c.managerFor(ctx)
	if !ok {
		return c.poolNotFound(ctx)
	}

	m.StopAll()

	return ctx.JSON(http.StatusOK, PlaybackResult{
		Success:   true,
		Action:    "stop_all",
		Pool:      m.Name(),
		Message:   "All playback stopped",
		Timestamp: time.Now(),
	})
}

// PausePool pauses every active session on the pool.
func (c *Controller) PausePool(ctx echo.Context) error {
	m, ok := c.managerFor(ctx)
	if !ok {
		return c.poolNotFound(ctx)
	}

	m.PauseAll()

	return ctx.JSON(http.StatusOK, PlaybackResult{
		Success:   true,
		Action:    "pause",
		Pool:      m.Name(),
		Message:   "Playback paused",
		Timestamp: time.Now(),
	})
}

// ResumePool resumes every paused session on the pool.
func (c *Controller) ResumePool(ctx echo.Context) error {
	m, ok := c.managerFor(ctx)
	if !ok {
		return c.poolNotFound(ctx)
	}

	m.ResumeAll()

	return ctx.JSON(http.StatusOK, PlaybackResult{
		Success:   true,
		Action:    "resume",
		Pool:      m.Name(),
		Message:   "Playback resumed",
		Timestamp: time.Now(),
	})
}

// GetPoolVolume returns the pool's master volume and mute state.
func (c *Controller) GetPoolVolume(ctx echo.Context) error {
	m, ok := c.managerFor(ctx)
	if !ok {
		return c.poolNotFound(ctx)
	}
	return ctx.JSON(http.StatusOK, VolumeState{
		Pool:   m.Name(),
		Volume: m.GetVolume(),
		Muted:  m.IsMuted(),
	})
}

// SetPoolVolume updates the pool's master volume, persisting it when
// preference autosave is on.
func (c *Controller) SetPoolVolume(ctx echo.Context) error {
	m, ok := c.managerFor(ctx)
	if !ok {
		return c.poolNotFound(ctx)
	}

	var req VolumeRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if req.Volume < 0 || req.Volume > 1 {
		return c.HandleError(ctx, errors.Newf("volume out of range: %v", req.Volume).
			Component("api").
			Category(errors.CategoryValidation).
			Context("volume", req.Volume).
			Build(),
			"Volume must be between 0.0 and 1.0", http.StatusBadRequest)
	}

	m.SetVolume(req.Volume)
	c.autosaveVolume(m)

	return ctx.JSON(http.StatusOK, VolumeState{
		Pool:   m.Name(),
		Volume: m.GetVolume(),
		Muted:  m.IsMuted(),
	})
}

// GetPoolMute returns the pool's mute state.
func (c *Controller) GetPoolMute(ctx echo.Context) error {
	m, ok := c.managerFor(ctx)
	if !ok {
		return c.poolNotFound(ctx)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"pool":  m.Name(),
		"muted": m.IsMuted(),
	})
}

// SetPoolMute mutes or unmutes the pool, persisting the state when
// preference autosave is on.
func (c *Controller) SetPoolMute(ctx echo.Context) error {
	m, ok := c.managerFor(ctx)
	if !ok {
		return c.poolNotFound(ctx)
	}

	var req MuteRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	if req.Muted {
		m.Mute()
	} else {
		m.Unmute()
	}
	c.autosaveMute(m)

	return ctx.JSON(http.StatusOK, map[string]any{
		"pool":  m.Name(),
		"muted": m.IsMuted(),
	})
}

// TogglePoolMute flips the pool's mute state.
func (c *Controller) TogglePoolMute(ctx echo.Context) error {
	m, ok := c.managerFor(ctx)
	if !ok {
		return c.poolNotFound(ctx)
	}

	muted := m.ToggleMute()
	c.autosaveMute(m)

	return ctx.JSON(http.StatusOK, map[string]any{
		"pool":  m.Name(),
		"muted": muted,
	})
}

func (c *Controller) autosaveVolume(m *soundcore.Manager) {
	if !c.Settings.Playback.AutosavePrefs {
		return
	}
	if err := m.SaveVolumeSetting(); err != nil {
		c.logger.Warn("failed to persist volume preference",
			"pool", m.Name(),
			"error", err)
	}
}

func (c *Controller) autosaveMute(m *soundcore.Manager) {
	if !c.Settings.Playback.AutosavePrefs {
		return
	}
	if err := m.SaveMuteSetting(); err != nil {
		c.logger.Warn("failed to persist mute preference",
			"pool", m.Name(),
			"error", err)
	}
}
