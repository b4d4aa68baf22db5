// Package api implements the HTTP control surface of the sound pool
// daemon: playback control per pool, catalog management, system
// information, and the Prometheus scrape endpoint. Everything is served
// from one echo group under /api/v1.
package api

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/soundpool-go/internal/catalog"
	"github.com/tphakala/soundpool-go/internal/conf"
	"github.com/tphakala/soundpool-go/internal/engine"
	"github.com/tphakala/soundpool-go/internal/errors"
	"github.com/tphakala/soundpool-go/internal/logging"
	"github.com/tphakala/soundpool-go/internal/observability"
	"github.com/tphakala/soundpool-go/internal/soundcore"
)

// shutdownTimeout bounds the drain of in-flight requests when the quit
// signal arrives.
const shutdownTimeout = 10 * time.Second

// Controller holds the dependencies of the control API. Handlers only
// read the maps built at construction time, so no lock is needed; the
// managers and catalog do their own locking.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Settings *conf.Settings

	managers map[string]*soundcore.Manager
	order    []string // pool listing order, as passed to New
	catalog  *catalog.Catalog
	backend  engine.Backend

	metrics   *observability.Metrics
	logger    *slog.Logger
	startTime time.Time
}

// Option configures optional controller dependencies.
type Option func(*Controller)

// WithBackend enables the output level endpoint for backends that meter
// their rendered output.
func WithBackend(b engine.Backend) Option {
	return func(c *Controller) {
		c.backend = b
	}
}

// WithMetrics enables HTTP request telemetry and mounts the Prometheus
// scrape handler under the API group.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// New creates the API controller and registers all routes on e.
func New(e *echo.Echo, settings *conf.Settings, managers []*soundcore.Manager, cat *catalog.Catalog, opts ...Option) (*Controller, error) {
	if e == nil {
		return nil, errors.Newf("api: echo instance is required").
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	if settings == nil {
		return nil, errors.Newf("api: settings are required").
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	if cat == nil {
		return nil, errors.Newf("api: catalog is required").
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}

	logger := logging.ForService("api")
	if logger == nil {
		logger = slog.Default().With("service", "api")
	}

	c := &Controller{
		Echo:      e,
		Settings:  settings,
		managers:  make(map[string]*soundcore.Manager, len(managers)),
		catalog:   cat,
		logger:    logger,
		startTime: time.Now(),
	}
	for _, m := range managers {
		if m == nil {
			continue
		}
		if _, dup := c.managers[m.Name()]; dup {
			return nil, errors.Newf("api: duplicate pool name %q", m.Name()).
				Component("api").
				Category(errors.CategoryValidation).
				Context("pool", m.Name()).
				Build()
		}
		c.managers[m.Name()] = m
		c.order = append(c.order, m.Name())
	}

	for _, opt := range opts {
		opt(c)
	}

	c.Group = e.Group("/api/v1")

	// Recover must run first so a handler panic still produces a response.
	c.Group.Use(middleware.Recover())
	c.Group.Use(middleware.CORS())
	c.Group.Use(middleware.BodyLimit("1M"))
	c.Group.Use(c.LoggingMiddleware())
	if c.metrics != nil && c.metrics.HTTP != nil {
		c.Group.Use(c.telemetryMiddleware())
	}
	if settings.WebServer.Auth.Enabled {
		c.Group.Use(c.basicAuthMiddleware())
	}

	c.initRoutes()

	return c, nil
}

// LoggingMiddleware logs every API request with structured fields.
func (c *Controller) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()

			err := next(ctx)

			req := ctx.Request()
			res := ctx.Response()

			// LogAttrs avoids the attribute allocations when the level
			// is disabled.
			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.String("query", req.URL.RawQuery),
				slog.Int("status", res.Status),
				slog.String("ip", ctx.RealIP()),
				slog.String("user_agent", req.UserAgent()),
				slog.Int64("latency_ms", time.Since(start).Milliseconds()),
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}

			c.logger.LogAttrs(req.Context(), slog.LevelInfo, "API request", attrs...)

			return err
		}
	}
}

// telemetryMiddleware records request counts, latencies, and error types
// on the HTTP metrics. ctx.Path() is the route template, so parameter
// values never become label values.
func (c *Controller) telemetryMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()

			err := next(ctx)

			path := ctx.Path()
			method := ctx.Request().Method
			status := ctx.Response().Status
			if status == 0 {
				status = http.StatusOK
			}

			c.metrics.HTTP.RecordHTTPRequest(method, path, status, time.Since(start).Seconds())
			if err != nil {
				c.metrics.HTTP.RecordHTTPRequestError(method, path, categorizeError(err))
			}

			return err
		}
	}
}

// categorizeError maps an error to a bounded metrics label.
func categorizeError(err error) string {
	var enhanced *errors.EnhancedError
	if errors.As(err, &enhanced) {
		return enhanced.GetCategory()
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.Code {
		case http.StatusBadRequest:
			return "validation"
		case http.StatusUnauthorized, http.StatusForbidden:
			return "auth"
		case http.StatusNotFound:
			return "not_found"
		case http.StatusTooManyRequests:
			return "rate_limit"
		default:
			return "http_error"
		}
	}

	return "unknown"
}

// initRoutes registers all endpoint groups. A panic in one group is
// contained so the remaining groups still register.
func (c *Controller) initRoutes() {
	// Health stays outside the auth guard for load balancer probes.
	c.Group.GET("/health", c.HealthCheck)

	routeInitializers := []struct {
		name string
		fn   func()
	}{
		{"pool routes", c.initPoolRoutes},
		{"catalog routes", c.initCatalogRoutes},
		{"system routes", c.initSystemRoutes},
		{"metrics routes", c.initMetricsRoutes},
	}

	for _, initializer := range routeInitializers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("panic during route initialization",
						"routes", initializer.name,
						"panic", r)
				}
			}()
			initializer.fn()
		}()
	}
}

// initMetricsRoutes mounts the Prometheus scrape handler when metrics
// are configured.
func (c *Controller) initMetricsRoutes() {
	if c.metrics == nil {
		return
	}
	handler := promhttp.HandlerFor(c.metrics.Registry(), promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
	c.Group.GET("/metrics", echo.WrapHandler(handler))
}

// HealthCheck reports daemon liveness with version and catalog status.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	response := map[string]any{
		"status":     "healthy",
		"version":    c.Settings.Version,
		"build_date": c.Settings.BuildDate,
		"timestamp":  time.Now().Format(time.RFC3339),
	}

	if c.Settings.WebServer.Debug {
		response["environment"] = "development"
	} else {
		response["environment"] = "production"
	}

	response["catalog_entries"] = c.catalog.Len()
	response["pools"] = len(c.managers)
	if c.backend != nil {
		response["engine"] = c.backend.Name()
	}

	uptime := time.Since(c.startTime)
	response["uptime"] = uptime.String()
	response["uptime_seconds"] = uptime.Seconds()

	return ctx.JSON(http.StatusOK, response)
}

// Start runs the API server on the configured port until quitChan
// closes. The caller owns the wait group used to track the listener.
func (c *Controller) Start(wg *sync.WaitGroup, quitChan <-chan struct{}) {
	addr := ":" + c.Settings.WebServer.Port

	wg.Go(func() {
		c.logger.Info("starting control API", "address", addr)
		if err := c.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("control API server error", "error", err)
		}
	})

	go c.gracefulShutdown(quitChan)
}

func (c *Controller) gracefulShutdown(quitChan <-chan struct{}) {
	<-quitChan

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	c.logger.Info("shutting down control API")
	if err := c.Echo.Shutdown(ctx); err != nil {
		c.logger.Error("control API shutdown failed", "error", err)
	}
}

// ErrorResponse is the uniform error body of the API.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse builds an error body with a fresh correlation id.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}

	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID creates a short random identifier that ties a
// logged error to the response the client saw.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}

	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError logs err with a correlation id and writes the uniform
// error body.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)

	c.logger.Error("API error",
		"correlation_id", errorResp.CorrelationID,
		"message", message,
		"error", errorResp.Error,
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"ip", ctx.RealIP(),
	)

	return ctx.JSON(code, errorResp)
}

// Debug logs a formatted message when API debug mode is enabled.
func (c *Controller) Debug(format string, v ...any) {
	if c.Settings.WebServer.Debug {
		c.logger.Debug(fmt.Sprintf(format, v...))
	}
}
