package telemetry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSystemID(t *testing.T) {
	t.Parallel()

	id, err := GenerateSystemID()
	require.NoError(t, err)
	assert.Len(t, id, 14)
	assert.True(t, isValidSystemID(id), "generated id %q should validate", id)

	other, err := GenerateSystemID()
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
}

func TestLoadOrCreateSystemIDPersists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	first, err := LoadOrCreateSystemID(dir)
	require.NoError(t, err)
	require.True(t, isValidSystemID(first))

	second, err := LoadOrCreateSystemID(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	data, err := os.ReadFile(filepath.Join(dir, systemIDFile))
	require.NoError(t, err)
	assert.Equal(t, first, string(data))
}

func TestLoadOrCreateSystemIDReplacesMalformedFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, systemIDFile), []byte("not-an-id"), 0o644))

	id, err := LoadOrCreateSystemID(dir)
	require.NoError(t, err)
	assert.True(t, isValidSystemID(id))
	assert.NotEqual(t, "not-an-id", id)
}

func TestIsValidSystemID(t *testing.T) {
	t.Parallel()

	assert.True(t, isValidSystemID("A1B2-C3D4-E5F6"))
	assert.True(t, isValidSystemID("a1b2-c3d4-e5f6"))
	assert.False(t, isValidSystemID(""))
	assert.False(t, isValidSystemID("A1B2C3D4E5F6"))
	assert.False(t, isValidSystemID("A1B2-C3D4-E5G6"))
	assert.False(t, isValidSystemID("A1B2-C3D4-E5F67"))
}
