package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextGettersFallBackToUnknown(t *testing.T) {
	t.Parallel()

	var nilCtx *Context
	assert.Equal(t, "unknown", nilCtx.GetVersion())
	assert.Equal(t, "unknown", nilCtx.GetBuildDate())
	assert.Equal(t, "unknown", nilCtx.GetSystemID())

	empty := &Context{}
	assert.Equal(t, "unknown", empty.GetVersion())
	assert.Equal(t, "unknown", empty.GetBuildDate())
	assert.Equal(t, "unknown", empty.GetSystemID())
}

func TestContextGetters(t *testing.T) {
	t.Parallel()

	ctx := &Context{
		Version:   "1.4.0",
		BuildDate: "2026-08-25T10:00:00Z",
		SystemID:  "A1B2-C3D4-E5F6",
	}
	assert.Equal(t, "1.4.0", ctx.GetVersion())
	assert.Equal(t, "2026-08-25T10:00:00Z", ctx.GetBuildDate())
	assert.Equal(t, "A1B2-C3D4-E5F6", ctx.GetSystemID())
	assert.Equal(t, "soundpool 1.4.0 (built 2026-08-25T10:00:00Z)", ctx.String())
}

func TestValidationResult(t *testing.T) {
	t.Parallel()

	r := NewValidationResult()
	assert.True(t, r.Valid)
	assert.False(t, r.HasIssues())

	r.AddWarning("control API runs without authentication")
	assert.True(t, r.Valid, "warnings must not invalidate the result")
	assert.True(t, r.HasIssues())

	r.AddError("no pools configured")
	assert.False(t, r.Valid)
	assert.Len(t, r.Errors, 1)
	assert.Len(t, r.Warnings, 1)
}
