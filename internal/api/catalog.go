package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/soundpool-go/internal/catalog"
)

// CatalogInfo is the catalog listing response.
type CatalogInfo struct {
	Path        string              `json:"path"`
	Count       int                 `json:"count"`
	CachedClips int                 `json:"cached_clips"`
	Sounds      []catalog.EntryInfo `json:"sounds"`
}

// ReloadResult reports the outcome of a catalog reload.
type ReloadResult struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// ProbeReport is one entry's row in the validation response.
type ProbeReport struct {
	Name       string `json:"name"`
	File       string `json:"file"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

// ValidationResult is the catalog validation response.
type ValidationResult struct {
	Valid   bool          `json:"valid"`
	Checked int           `json:"checked"`
	Failed  int           `json:"failed"`
	Reports []ProbeReport `json:"reports"`
}

// initCatalogRoutes registers the catalog management endpoints.
func (c *Controller) initCatalogRoutes() {
	g := c.Group.Group("/catalog")

	g.GET("", c.GetCatalog)
	g.POST("/reload", c.ReloadCatalog)
	g.GET("/validate", c.ValidateCatalog)
}

// GetCatalog lists all catalog entries.
func (c *Controller) GetCatalog(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, CatalogInfo{
		Path:        c.catalog.Path(),
		Count:       c.catalog.Len(),
		CachedClips: c.catalog.CachedClips(),
		Sounds:      c.catalog.Entries(),
	})
}

// ReloadCatalog re-reads the catalog file. A reload that fails
// validation leaves the previous catalog in place.
func (c *Controller) ReloadCatalog(ctx echo.Context) error {
	if err := c.catalog.Reload(); err != nil {
		return c.HandleError(ctx, err, "Catalog reload failed, previous catalog kept",
			http.StatusUnprocessableEntity)
	}

	c.Debug("catalog reloaded with %d entries", c.catalog.Len())

	return ctx.JSON(http.StatusOK, ReloadResult{
		Success:   true,
		Message:   "Catalog reloaded",
		Count:     c.catalog.Len(),
		Timestamp: time.Now(),
	})
}

// ValidateCatalog probes every entry's audio file and reports the
// failures without touching the loaded catalog.
func (c *Controller) ValidateCatalog(ctx echo.Context) error {
	results := c.catalog.ProbeAll()

	response := ValidationResult{
		Valid:   true,
		Checked: len(results),
		Reports: make([]ProbeReport, 0, len(results)),
	}

	for i := range results {
		r := &results[i]
		report := ProbeReport{
			Name: r.Entry.Name,
			File: r.Entry.File,
			OK:   r.Err == nil,
		}
		if r.Err != nil {
			report.Error = r.Err.Error()
			response.Valid = false
			response.Failed++
		} else {
			report.DurationMS = r.Info.Duration().Milliseconds()
			report.SampleRate = r.Info.SampleRate
			report.Channels = r.Info.NumChannels
		}
		response.Reports = append(response.Reports, report)
	}

	return ctx.JSON(http.StatusOK, response)
}
