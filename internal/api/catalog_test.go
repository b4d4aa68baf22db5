package api

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCatalog(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/api/v1/catalog", "")
	require.Equal(t, http.StatusOK, rec.Code)

	info := decodeBody[CatalogInfo](t, rec)
	assert.Equal(t, 2, info.Count)
	require.Len(t, info.Sounds, 2)
	assert.Equal(t, "click", info.Sounds[0].Name)
	assert.Equal(t, "chime", info.Sounds[1].Name)
	assert.InDelta(t, 0.8, info.Sounds[0].Volume, 1e-9)
}

func TestReloadCatalog(t *testing.T) {
	env := newTestEnv(t, nil)

	// Replace the catalog file with a single entry and reload.
	doc := `
sounds:
  - name: click
    id: 1
    file: click.wav
`
	catalogPath := filepath.Join(env.catalogDir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(doc), 0o644))

	rec := env.do(http.MethodPost, "/api/v1/catalog/reload", "")
	require.Equal(t, http.StatusOK, rec.Code)

	result := decodeBody[ReloadResult](t, rec)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, 1, env.catalog.Len())
}

func TestReloadCatalogKeepsOldOnFailure(t *testing.T) {
	env := newTestEnv(t, nil)

	catalogPath := filepath.Join(env.catalogDir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte("sounds: [{name: '', id: 0}]"), 0o644))

	rec := env.do(http.MethodPost, "/api/v1/catalog/reload", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	response := decodeBody[ErrorResponse](t, rec)
	assert.Contains(t, response.Message, "previous catalog kept")

	// The broken file did not replace the loaded entries.
	assert.Equal(t, 2, env.catalog.Len())
	_, ok := env.catalog.Lookup("click")
	assert.True(t, ok)
}

func TestValidateCatalog(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/api/v1/catalog/validate", "")
	require.Equal(t, http.StatusOK, rec.Code)

	result := decodeBody[ValidationResult](t, rec)
	assert.True(t, result.Valid)
	assert.Equal(t, 2, result.Checked)
	assert.Zero(t, result.Failed)
	require.Len(t, result.Reports, 2)
	for _, report := range result.Reports {
		assert.True(t, report.OK, report.Name)
		assert.Equal(t, 44100, report.SampleRate)
		assert.Positive(t, report.DurationMS)
	}
}

func TestValidateCatalogReportsMissingFile(t *testing.T) {
	env := newTestEnv(t, nil)

	// Remove one audio file so its probe fails.
	require.NoError(t, os.Remove(filepath.Join(env.catalogDir, "chime.wav")))

	rec := env.do(http.MethodGet, "/api/v1/catalog/validate", "")
	require.Equal(t, http.StatusOK, rec.Code)

	result := decodeBody[ValidationResult](t, rec)
	assert.False(t, result.Valid)
	assert.Equal(t, 1, result.Failed)

	var failed *ProbeReport
	for i := range result.Reports {
		if !result.Reports[i].OK {
			failed = &result.Reports[i]
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, "chime", failed.Name)
	assert.NotEmpty(t, failed.Error)
}
