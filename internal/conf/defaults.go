// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "SoundPool-Go")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "soundpool.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 1048576)
	viper.SetDefault("main.log.rotationday", time.Sunday.String())

	viper.SetDefault("pools", []map[string]any{
		{
			"name":            "default",
			"maxchannels":     16,
			"prewarmchannels": 4,
			"strictlimit":     false,
			"stoponmute":      false,
			"mastervolume":    1.0,
		},
	})

	viper.SetDefault("playback.engine", "malgo")
	viper.SetDefault("playback.device", "")
	viper.SetDefault("playback.samplerate", 48000)
	viper.SetDefault("playback.channels", 2)
	viper.SetDefault("playback.tickinterval", "50ms")
	viper.SetDefault("playback.autosaveprefs", true)

	viper.SetDefault("catalog.path", "catalog.yaml")
	viper.SetDefault("catalog.watch", true)
	viper.SetDefault("catalog.preload", false)
	viper.SetDefault("catalog.cachettl", "30m")

	viper.SetDefault("preferences.debug", false)
	viper.SetDefault("preferences.sqlite.enabled", true)
	viper.SetDefault("preferences.sqlite.path", "soundpool.db")
	viper.SetDefault("preferences.mysql.enabled", false)
	viper.SetDefault("preferences.mysql.username", "soundpool")
	viper.SetDefault("preferences.mysql.password", "soundpool")
	viper.SetDefault("preferences.mysql.database", "soundpool")
	viper.SetDefault("preferences.mysql.host", "localhost")
	viper.SetDefault("preferences.mysql.port", "3306")

	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.log.enabled", true)
	viper.SetDefault("webserver.log.path", "webserver.log")
	viper.SetDefault("webserver.log.rotation", RotationDaily)
	viper.SetDefault("webserver.log.maxsize", 1048576)
	viper.SetDefault("webserver.auth.enabled", false)
	viper.SetDefault("webserver.auth.username", "")
	viper.SetDefault("webserver.auth.passwordhash", "")
	viper.SetDefault("webserver.ratelimit.enabled", false)
	viper.SetDefault("webserver.ratelimit.rps", 20.0)
	viper.SetDefault("webserver.ratelimit.burst", 40)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "0.0.0.0:8090")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
	viper.SetDefault("sentry.debug", false)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "soundpool")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.retain", false)

	viper.SetDefault("notification.enabled", false)
	viper.SetDefault("notification.urls", []string{})
	viper.SetDefault("notification.minpriority", "high")
	viper.SetDefault("notification.timeout", "10s")
}
