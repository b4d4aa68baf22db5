package catalog

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/soundpool-go/internal/catalog"
	"github.com/tphakala/soundpool-go/internal/conf"
)

// ListCommand creates the list subcommand
func ListCommand(settings *conf.Settings) *cobra.Command {
	var probe bool

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the entries of the sound catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.New(catalog.Config{Path: settings.Catalog.Path}, nil)
			if err != nil {
				return err
			}
			defer cat.Close()

			if probe {
				// Fill duration and format columns before listing.
				cat.ProbeAll()
			}

			fmt.Printf("Catalog %s, %d entries\n\n", cat.Path(), cat.Len())
			fmt.Printf("%-4s %-24s %-32s %6s %6s %5s %10s\n",
				"ID", "NAME", "FILE", "VOL", "PITCH", "LOOP", "DURATION")

			for _, e := range cat.Entries() {
				duration := "-"
				if e.Duration > 0 {
					duration = e.Duration.Round(time.Millisecond).String()
				}
				loop := ""
				if e.Loop {
					loop = "loop"
				}
				fmt.Printf("%-4d %-24s %-32s %6.2f %6.2f %5s %10s\n",
					e.ID, e.Name, e.File, e.Volume, e.Pitch, loop, duration)
			}

			return nil
		},
	}

	listCmd.Flags().BoolVar(&probe, "probe", false, "Probe every file to include duration and format")

	return listCmd
}
