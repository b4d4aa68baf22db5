// config.go: settings struct and functions to load and save the soundpool configuration.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var configFiles embed.FS

// PoolSettings configures one playback manager instance. Several pools can
// run side by side (e.g. sfx and music) with independent capacity policies
// and preference namespaces.
type PoolSettings struct {
	Name            string  // pool name, also the preference-key namespace
	MaxChannels     int     // nominal channel capacity, >= 1
	PrewarmChannels int     // channels created up front, <= maxchannels
	StrictLimit     bool    // true: reclaim oldest busy channel instead of growing
	StopOnMute      bool    // true: mute stops sessions, false: mute pauses them
	MasterVolume    float64 // initial master volume in [0,1]
}

// PlaybackSettings configures the audio engine shared by all pools.
type PlaybackSettings struct {
	Engine        string        // playback engine: malgo, beep or null
	Device        string        // output device name, empty for system default
	SampleRate    int           // output sample rate in Hz
	Channels      int           // output channel count, 1 or 2
	TickInterval  time.Duration // completion scheduler tick interval
	AutosavePrefs bool          // persist volume/mute changes as they happen
}

// CatalogSettings configures the sound catalog.
type CatalogSettings struct {
	Path     string        // path to the catalog YAML file
	Watch    bool          // reload the catalog when the file changes
	Preload  bool          // decode all clips at load time instead of lazily
	CacheTTL time.Duration // decoded PCM cache time-to-live
}

// PreferencesSettings selects the preference store backend. When neither
// SQLite nor MySQL is enabled an in-memory store is used and nothing persists.
type PreferencesSettings struct {
	Debug bool // true to enable store debug logging

	SQLite struct {
		Enabled bool   // true to use SQLite
		Path    string // path to the database file
	}

	MySQL struct {
		Enabled  bool   // true to use MySQL
		Username string // MySQL username
		Password string // MySQL password
		Database string // MySQL database name
		Host     string // MySQL host
		Port     string // MySQL port
	}
}

// MQTTSettings configures playback event publishing.
type MQTTSettings struct {
	Enabled  bool   // true to enable MQTT publishing
	Broker   string // broker URL, e.g. tcp://localhost:1883
	Topic    string // topic prefix for published events
	Username string // broker username
	Password string // broker password
	Retain   bool   // true to publish retained messages
}

// NotificationSettings configures push notifications for critical errors.
type NotificationSettings struct {
	Enabled     bool          // true to enable push notifications
	Urls        []string      // shoutrrr service URLs
	MinPriority string        // minimum error priority to push: low, medium, high, critical
	Timeout     time.Duration // per-send timeout
}

// SentrySettings configures optional error telemetry. Opt-in.
type SentrySettings struct {
	Enabled bool   // true to enable Sentry error reporting
	DSN     string // Sentry DSN, required when enabled
	Debug   bool   // true to log telemetry internals
}

// WebAuthSettings configures HTTP basic auth for the control API.
type WebAuthSettings struct {
	Enabled      bool   // true to require authentication
	Username     string // basic auth username
	PasswordHash string // bcrypt hash of the password
}

// RateLimitSettings throttles play requests on the control API.
type RateLimitSettings struct {
	Enabled bool    // true to enable rate limiting
	RPS     float64 // sustained requests per second per client
	Burst   int     // burst size per client
}

// Settings is the root configuration for the application.
type Settings struct {
	Debug bool // true to enable debug mode

	// Runtime values, not stored in config file
	Version   string `yaml:"-"` // Version from build
	BuildDate string `yaml:"-"` // Build date from build

	Main struct {
		Name string    // name of this soundpool instance, used in logs and client ids
		Log  LogConfig // logging configuration
	}

	Pools []PoolSettings // playback manager instances

	Playback PlaybackSettings // shared audio engine configuration

	Catalog CatalogSettings // sound catalog configuration

	Preferences PreferencesSettings // preference store configuration

	WebServer struct {
		Debug     bool              // true to enable API debug mode
		Enabled   bool              // true to enable the control API
		Port      string            // port for the control API
		Log       LogConfig         // logging configuration for the API
		Auth      WebAuthSettings   // basic auth configuration
		RateLimit RateLimitSettings // play request throttling
	}

	Telemetry struct {
		Enabled bool   // true to expose a Prometheus metrics endpoint
		Listen  string // IP address and port to listen on, e.g. 0.0.0.0:8090
	}

	Sentry SentrySettings // error telemetry configuration

	MQTT MQTTSettings // MQTT event publishing

	Notification NotificationSettings // push notifications
}

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled     bool         // true to enable this log
	Path        string       // Path to the log file
	Rotation    RotationType // Type of log rotation
	MaxSize     int64        // Max size in bytes for RotationSize
	RotationDay string       // Day of the week for RotationWeekly ("Sunday", "Monday", ...)
}

// RotationType defines different types of log rotations.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter,
	// function defined in defaults.go
	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig creates a default config file and writes it to the default config path
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}
	return string(data)
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// SaveSettings saves the current settings to the configuration file using an
// atomic write.
func SaveSettings() error {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()

	settingsCopy := *settingsInstance
	settingsCopy.Pools = make([]PoolSettings, len(settingsInstance.Pools))
	copy(settingsCopy.Pools, settingsInstance.Pools)

	configPath, err := FindConfigFile()
	if err != nil {
		return fmt.Errorf("error finding config file: %w", err)
	}

	if err := SaveYAMLConfig(configPath, &settingsCopy); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	log.Printf("Settings saved successfully to %s", configPath)
	return nil
}

// SaveYAMLConfig updates the YAML configuration file with new settings.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	// Write to a temporary file first so the replacement is atomic
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		// Rename fails across filesystems, fall back to copy & delete
		if err := moveFile(tempFileName, configPath); err != nil {
			return fmt.Errorf("error copying config file: %w", err)
		}
	}

	return nil
}

// PoolByName returns the pool settings with the given name, or nil.
func (s *Settings) PoolByName(name string) *PoolSettings {
	for i := range s.Pools {
		if s.Pools[i].Name == name {
			return &s.Pools[i]
		}
	}
	return nil
}

// TickIntervalOrDefault returns the configured scheduler tick interval,
// falling back to 50ms when unset or nonsensical.
func (s *Settings) TickIntervalOrDefault() time.Duration {
	if s.Playback.TickInterval <= 0 {
		return 50 * time.Millisecond
	}
	return s.Playback.TickInterval
}
