// Package buildinfo carries build-time metadata injected through ldflags
// at the composition root, kept apart from user configuration.
package buildinfo

import "fmt"

// Context holds the metadata stamped into the binary plus the anonymous
// system id resolved at startup. All getters tolerate a nil receiver so
// callers can pass an unset context around during early startup.
type Context struct {
	// Version is the git tag or "dev" when built outside a release
	Version string

	// BuildDate is when the binary was built
	BuildDate string

	// SystemID is the anonymous install identifier used by telemetry
	SystemID string
}

// GetVersion returns the version, or "unknown" when unset.
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return "unknown"
	}
	return c.Version
}

// GetBuildDate returns the build date, or "unknown" when unset.
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return "unknown"
	}
	return c.BuildDate
}

// GetSystemID returns the system id, or "unknown" when unset.
func (c *Context) GetSystemID() string {
	if c == nil || c.SystemID == "" {
		return "unknown"
	}
	return c.SystemID
}

// String formats the context for version output and startup logs.
func (c *Context) String() string {
	return fmt.Sprintf("soundpool %s (built %s)", c.GetVersion(), c.GetBuildDate())
}

// ValidationResult aggregates configuration check outcomes gathered at
// startup, keeping warnings that should not block the daemon apart from
// errors that must.
type ValidationResult struct {
	Warnings []string `json:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Valid    bool     `json:"valid"`
}

// NewValidationResult creates a result that starts out valid.
func NewValidationResult() *ValidationResult {
	return &ValidationResult{Valid: true}
}

// AddWarning records a non-fatal configuration issue.
func (r *ValidationResult) AddWarning(message string) {
	r.Warnings = append(r.Warnings, message)
}

// AddError records a fatal configuration issue and marks the result
// invalid.
func (r *ValidationResult) AddError(message string) {
	r.Errors = append(r.Errors, message)
	r.Valid = false
}

// HasIssues reports whether anything was recorded.
func (r *ValidationResult) HasIssues() bool {
	return len(r.Warnings) > 0 || len(r.Errors) > 0
}
