package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() *Settings {
	s := &Settings{}
	s.Pools = []PoolSettings{
		{Name: "sfx", MaxChannels: 8, PrewarmChannels: 2, MasterVolume: 1.0},
		{Name: "music", MaxChannels: 2, PrewarmChannels: 1, StrictLimit: true, MasterVolume: 0.8},
	}
	s.Playback = PlaybackSettings{
		Engine:       "null",
		SampleRate:   48000,
		Channels:     2,
		TickInterval: 50 * time.Millisecond,
	}
	s.WebServer.Enabled = true
	s.WebServer.Port = "8080"
	return s
}

func TestValidateSettingsAcceptsValidConfig(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateSettings(validSettings()))
}

func TestValidateSettingsRejectsBadPools(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"no pools", func(s *Settings) { s.Pools = nil }},
		{"empty name", func(s *Settings) { s.Pools[0].Name = " " }},
		{"duplicate name", func(s *Settings) { s.Pools[1].Name = "sfx" }},
		{"zero max channels", func(s *Settings) { s.Pools[0].MaxChannels = 0 }},
		{"prewarm above max", func(s *Settings) { s.Pools[0].PrewarmChannels = 9 }},
		{"strict without prewarm", func(s *Settings) { s.Pools[1].PrewarmChannels = 0 }},
		{"volume above one", func(s *Settings) { s.Pools[0].MasterVolume = 1.5 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := validSettings()
			tc.mutate(s)
			assert.Error(t, ValidateSettings(s))
		})
	}
}

func TestValidateSettingsRejectsBadPlayback(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Playback.Engine = "pulseaudio"
	assert.Error(t, ValidateSettings(s))

	s = validSettings()
	s.Playback.Channels = 6
	assert.Error(t, ValidateSettings(s))

	s = validSettings()
	s.Playback.SampleRate = 100
	assert.Error(t, ValidateSettings(s))
}

func TestValidateSettingsWebServerAuth(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.WebServer.Auth.Enabled = true
	s.WebServer.Auth.Username = "admin"
	s.WebServer.Auth.PasswordHash = "plaintext"
	assert.Error(t, ValidateSettings(s), "non-bcrypt hash must be rejected")

	s.WebServer.Auth.PasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
	assert.NoError(t, ValidateSettings(s))
}

func TestPoolByName(t *testing.T) {
	t.Parallel()

	s := validSettings()
	require.NotNil(t, s.PoolByName("music"))
	assert.Equal(t, 2, s.PoolByName("music").MaxChannels)
	assert.Nil(t, s.PoolByName("voice"))
}

func TestTickIntervalOrDefault(t *testing.T) {
	t.Parallel()

	s := validSettings()
	assert.Equal(t, 50*time.Millisecond, s.TickIntervalOrDefault())

	s.Playback.TickInterval = 0
	assert.Equal(t, 50*time.Millisecond, s.TickIntervalOrDefault())

	s.Playback.TickInterval = time.Second
	assert.Equal(t, time.Second, s.TickIntervalOrDefault())
}
