// Package daemon runs the long-lived soundpool service: the audio engine,
// one playback manager per configured pool, the event bus with its MQTT,
// notification and telemetry consumers, and the HTTP surfaces.
package daemon

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tphakala/soundpool-go/internal/conf"
)

// Command creates the daemon command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the sound pool daemon",
		Long:  "Start the playback engine and channel pools and serve the control API until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(settings)
		},
	}

	// Set up flags specific to the 'daemon' command
	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the daemon command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().BoolVar(&settings.WebServer.Enabled, "api", viper.GetBool("webserver.enabled"), "Enable the control API server")
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port for the control API server")
	cmd.Flags().BoolVar(&settings.Catalog.Watch, "watch", viper.GetBool("catalog.watch"), "Reload the catalog when its file changes")
	cmd.Flags().BoolVar(&settings.Telemetry.Enabled, "telemetry", viper.GetBool("telemetry.enabled"), "Enable Prometheus telemetry endpoint")
	cmd.Flags().StringVar(&settings.Telemetry.Listen, "listen", viper.GetString("telemetry.listen"), "Listen address and port of telemetry endpoint")
	cmd.Flags().BoolVar(&settings.MQTT.Enabled, "mqtt", viper.GetBool("mqtt.enabled"), "Publish playback events to the configured MQTT broker")

	// Bind flags to the viper settings
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
