package prefs

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/soundpool-go/internal/conf"
)

func sqliteSettings(t *testing.T) *conf.Settings {
	t.Helper()
	settings := &conf.Settings{}
	settings.Main.Name = "soundpool-test"
	settings.Preferences.SQLite.Enabled = true
	// A nested directory exercises parent directory creation on Open.
	settings.Preferences.SQLite.Path = filepath.Join(t.TempDir(), "data", "prefs.db")
	return settings
}

func openStore(t *testing.T, settings *conf.Settings) Store {
	t.Helper()
	store := New(settings)
	require.NoError(t, store.Open())
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestNewSelectsBackend(t *testing.T) {
	t.Parallel()

	t.Run("sqlite", func(t *testing.T) {
		t.Parallel()
		settings := &conf.Settings{}
		settings.Preferences.SQLite.Enabled = true
		assert.IsType(t, &SQLiteStore{}, New(settings))
	})

	t.Run("mysql", func(t *testing.T) {
		t.Parallel()
		settings := &conf.Settings{}
		settings.Preferences.MySQL.Enabled = true
		assert.IsType(t, &MySQLStore{}, New(settings))
	})

	t.Run("memory fallback", func(t *testing.T) {
		t.Parallel()
		assert.IsType(t, &MemoryStore{}, New(&conf.Settings{}))
	})
}

func TestSQLiteRoundTrip(t *testing.T) {
	store := openStore(t, sqliteSettings(t))

	_, ok := store.GetFloat("sfx_volume")
	assert.False(t, ok, "unwritten key should not resolve")

	require.NoError(t, store.SetFloat("sfx_volume", 0.65))
	v, ok := store.GetFloat("sfx_volume")
	require.True(t, ok)
	assert.InDelta(t, 0.65, v, 1e-9)

	// Overwrite replaces the previous row instead of adding one.
	require.NoError(t, store.SetFloat("sfx_volume", 0.3))
	v, ok = store.GetFloat("sfx_volume")
	require.True(t, ok)
	assert.InDelta(t, 0.3, v, 1e-9)

	require.NoError(t, store.SetInt("sfx_mute", 1))
	n, ok := store.GetInt("sfx_mute")
	require.True(t, ok)
	assert.Equal(t, 1, n)

	require.NoError(t, store.SetInt("sfx_mute", 0))
	n, ok = store.GetInt("sfx_mute")
	require.True(t, ok)
	assert.Equal(t, 0, n)

	// A float value does not read back as an integer.
	_, ok = store.GetInt("sfx_volume")
	assert.False(t, ok)
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	settings := sqliteSettings(t)

	store := New(settings)
	require.NoError(t, store.Open())
	require.NoError(t, store.SetFloat("music_volume", 0.42))
	require.NoError(t, store.SetInt("music_mute", 1))
	require.NoError(t, store.Close())

	reopened := openStore(t, settings)
	v, ok := reopened.GetFloat("music_volume")
	require.True(t, ok)
	assert.InDelta(t, 0.42, v, 1e-9)
	n, ok := reopened.GetInt("music_mute")
	require.True(t, ok)
	assert.Equal(t, 1, n)
}

func TestInstanceNamesIsolatePreferences(t *testing.T) {
	settings := sqliteSettings(t)

	store := New(settings)
	require.NoError(t, store.Open())
	require.NoError(t, store.SetFloat("sfx_volume", 0.25))
	require.NoError(t, store.Close())

	other := &conf.Settings{}
	other.Main.Name = "another-instance"
	other.Preferences = settings.Preferences

	otherStore := New(other)
	require.NoError(t, otherStore.Open())
	_, ok := otherStore.GetFloat("sfx_volume")
	assert.False(t, ok, "preferences must not leak across instance names")
	require.NoError(t, otherStore.SetFloat("sfx_volume", 0.75))
	require.NoError(t, otherStore.Close())

	reopened := openStore(t, settings)
	v, ok := reopened.GetFloat("sfx_volume")
	require.True(t, ok)
	assert.InDelta(t, 0.25, v, 1e-9)
}

func TestCorruptValueDoesNotResolve(t *testing.T) {
	settings := sqliteSettings(t)
	store := openStore(t, settings)

	sqliteStore, ok := store.(*SQLiteStore)
	require.True(t, ok)
	row := Preference{Name: settings.Main.Name, Key: "sfx_volume", Value: "loud", UpdatedAt: time.Now()}
	require.NoError(t, sqliteStore.DB.Create(&row).Error)

	_, ok = store.GetFloat("sfx_volume")
	assert.False(t, ok)
	_, ok = store.GetInt("sfx_volume")
	assert.False(t, ok)
}

func TestUnopenedStore(t *testing.T) {
	t.Parallel()

	store := &SQLiteStore{Settings: sqliteSettings(t)}

	_, ok := store.GetFloat("sfx_volume")
	assert.False(t, ok)

	err := store.SetFloat("sfx_volume", 0.5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not open")

	assert.NoError(t, store.Close())
}

func TestSQLiteOpenRequiresPath(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Preferences.SQLite.Enabled = true

	store := New(settings)
	err := store.Open()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no path configured")
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	require.NoError(t, store.Open())

	t.Run("missing keys", func(t *testing.T) {
		_, ok := store.GetFloat("absent")
		assert.False(t, ok)
		_, ok = store.GetInt("absent")
		assert.False(t, ok)
	})

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, store.SetFloat("sfx_volume", 0.8))
		v, ok := store.GetFloat("sfx_volume")
		require.True(t, ok)
		assert.InDelta(t, 0.8, v, 1e-9)

		require.NoError(t, store.SetInt("sfx_mute", 1))
		n, ok := store.GetInt("sfx_mute")
		require.True(t, ok)
		assert.Equal(t, 1, n)
	})

	t.Run("types are independent", func(t *testing.T) {
		require.NoError(t, store.SetFloat("shared", 1))
		_, ok := store.GetInt("shared")
		assert.False(t, ok)
	})

	require.NoError(t, store.Close())
}
