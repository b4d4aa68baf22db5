package main

import (
	"os"

	"github.com/tphakala/soundpool-go/cmd"
	"github.com/tphakala/soundpool-go/internal/conf"
	"github.com/tphakala/soundpool-go/internal/logging"
)

// version and buildDate are stamped by the linker:
//
//	go build -ldflags "-X main.version=v1.2.3 -X main.buildDate=2026-08-25T07:16:00Z"
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		logging.Fatal("error loading settings", "error", err)
	}

	// Make the build information available throughout the application
	settings.Version = version
	settings.BuildDate = buildDate

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
