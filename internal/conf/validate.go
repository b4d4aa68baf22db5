// conf/validate.go

package conf

import (
	"fmt"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validatePoolSettings(settings.Pools); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validatePlaybackSettings(&settings.Playback); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateWebServerSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateMQTTSettings(&settings.MQTT); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateNotificationSettings(&settings.Notification); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validatePoolSettings validates every configured pool
func validatePoolSettings(pools []PoolSettings) error {
	var errs []string

	if len(pools) == 0 {
		errs = append(errs, "at least one pool must be configured")
	}

	seen := make(map[string]bool, len(pools))
	for i := range pools {
		p := &pools[i]
		if strings.TrimSpace(p.Name) == "" {
			errs = append(errs, fmt.Sprintf("pool %d: name must not be empty", i))
			continue
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Sprintf("pool %q: duplicate name", p.Name))
		}
		seen[p.Name] = true

		if p.MaxChannels < 1 {
			errs = append(errs, fmt.Sprintf("pool %q: maxchannels must be at least 1, got %d", p.Name, p.MaxChannels))
		}
		if p.PrewarmChannels < 0 || p.PrewarmChannels > p.MaxChannels {
			errs = append(errs, fmt.Sprintf("pool %q: prewarmchannels must be between 0 and maxchannels, got %d", p.Name, p.PrewarmChannels))
		}
		if p.StrictLimit && p.PrewarmChannels == 0 {
			// A strict pool never grows, so an empty pre-warm makes it unusable
			errs = append(errs, fmt.Sprintf("pool %q: strictlimit requires prewarmchannels >= 1", p.Name))
		}
		if p.MasterVolume < 0 || p.MasterVolume > 1 {
			errs = append(errs, fmt.Sprintf("pool %q: mastervolume must be between 0.0 and 1.0, got %g", p.Name, p.MasterVolume))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("pool settings errors: %v", errs)
	}
	return nil
}

// validatePlaybackSettings validates the shared engine settings
func validatePlaybackSettings(settings *PlaybackSettings) error {
	var errs []string

	switch settings.Engine {
	case "malgo", "beep", "null":
	default:
		errs = append(errs, fmt.Sprintf("unknown playback engine %q, must be malgo, beep or null", settings.Engine))
	}

	if settings.SampleRate < 8000 || settings.SampleRate > 192000 {
		errs = append(errs, fmt.Sprintf("samplerate must be between 8000 and 192000, got %d", settings.SampleRate))
	}
	if settings.Channels != 1 && settings.Channels != 2 {
		errs = append(errs, fmt.Sprintf("channels must be 1 or 2, got %d", settings.Channels))
	}
	if settings.TickInterval < 0 {
		errs = append(errs, "tickinterval must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("playback settings errors: %v", errs)
	}
	return nil
}

// validateWebServerSettings validates the control API settings
func validateWebServerSettings(settings *Settings) error {
	var errs []string

	ws := &settings.WebServer
	if ws.Enabled {
		if ws.Port == "" {
			errs = append(errs, "webserver port is required when the webserver is enabled")
		}
		if ws.Auth.Enabled {
			if ws.Auth.Username == "" {
				errs = append(errs, "webserver auth username is required when auth is enabled")
			}
			if !strings.HasPrefix(ws.Auth.PasswordHash, "$2") {
				errs = append(errs, "webserver auth passwordhash must be a bcrypt hash")
			}
		}
		if ws.RateLimit.Enabled {
			if ws.RateLimit.RPS <= 0 {
				errs = append(errs, "webserver ratelimit rps must be positive")
			}
			if ws.RateLimit.Burst < 1 {
				errs = append(errs, "webserver ratelimit burst must be at least 1")
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("webserver settings errors: %v", errs)
	}
	return nil
}

// validateMQTTSettings validates MQTT settings when enabled
func validateMQTTSettings(settings *MQTTSettings) error {
	var errs []string

	if settings.Enabled {
		if settings.Broker == "" {
			errs = append(errs, "mqtt broker is required when mqtt is enabled")
		}
		if settings.Topic == "" {
			errs = append(errs, "mqtt topic is required when mqtt is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("mqtt settings errors: %v", errs)
	}
	return nil
}

// validateNotificationSettings validates push notification settings when enabled
func validateNotificationSettings(settings *NotificationSettings) error {
	var errs []string

	if settings.Enabled {
		if len(settings.Urls) == 0 {
			errs = append(errs, "at least one notification URL is required when notifications are enabled")
		}
		switch settings.MinPriority {
		case "", "low", "medium", "high", "critical":
			// empty defaults to high
		default:
			errs = append(errs, fmt.Sprintf("unknown notification minpriority %q", settings.MinPriority))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification settings errors: %v", errs)
	}
	return nil
}
