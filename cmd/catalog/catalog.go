// catalog.go catalog command group
package catalog

import (
	"github.com/spf13/cobra"
	"github.com/tphakala/soundpool-go/internal/conf"
)

// Command creates the catalog parent command
func Command(settings *conf.Settings) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and validate the sound catalog",
	}

	// Add subcommands here
	catalogCmd.AddCommand(ListCommand(settings))
	catalogCmd.AddCommand(ValidateCommand(settings))

	return catalogCmd
}
