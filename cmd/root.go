package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tphakala/soundpool-go/cmd/authors"
	catalogcmd "github.com/tphakala/soundpool-go/cmd/catalog"
	"github.com/tphakala/soundpool-go/cmd/daemon"
	"github.com/tphakala/soundpool-go/cmd/license"
	"github.com/tphakala/soundpool-go/cmd/play"
	"github.com/tphakala/soundpool-go/internal/buildinfo"
	"github.com/tphakala/soundpool-go/internal/conf"
	"github.com/tphakala/soundpool-go/internal/logging"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	build := &buildinfo.Context{
		Version:   settings.Version,
		BuildDate: settings.BuildDate,
	}

	rootCmd := &cobra.Command{
		Use:     "soundpool",
		Short:   "SoundPool-Go CLI",
		Version: fmt.Sprintf("%s (built %s)", build.GetVersion(), build.GetBuildDate()),
	}

	// Set up the global flags for the root command.
	setupFlags(rootCmd, settings)

	// Add sub-commands to the root command.
	daemonCmd := daemon.Command(settings)
	playCmd := play.Command(settings)
	catalogCmd := catalogcmd.Command(settings)
	authorsCmd := authors.Command()
	licenseCmd := license.Command()

	subcommands := []*cobra.Command{
		daemonCmd,
		playCmd,
		catalogCmd,
		authorsCmd,
		licenseCmd,
	}

	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Parse the command line flags
		if err := cmd.Flags().Parse(args); err != nil {
			return err
		}

		// Skip setup for authors and license commands
		if cmd.Name() == authorsCmd.Name() || cmd.Name() == licenseCmd.Name() {
			return nil
		}

		return initialize(settings)
	}

	return rootCmd
}

// initialize runs before any playback subcommand, after flags have been
// parsed into the settings tree.
func initialize(settings *conf.Settings) error {
	if settings.Debug {
		logging.SetLevel(slog.LevelDebug)
		logging.Debug("debug output enabled")
	}
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Catalog.Path, "catalog", viper.GetString("catalog.path"), "Path to the sound catalog file")
	rootCmd.PersistentFlags().StringVarP(&settings.Playback.Engine, "engine", "e", viper.GetString("playback.engine"), "Playback engine: malgo, beep or null")
	rootCmd.PersistentFlags().StringVar(&settings.Playback.Device, "device", viper.GetString("playback.device"), "Output device name, empty for system default")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
