package catalog

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/soundpool-go/internal/catalog"
	"github.com/tphakala/soundpool-go/internal/conf"
	"github.com/tphakala/soundpool-go/internal/errors"
)

// ValidateCommand creates the validate subcommand
func ValidateCommand(settings *conf.Settings) *cobra.Command {
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Probe every catalog entry and report unreadable files",
		Long:  "Loads the catalog, probes every referenced audio file, and exits nonzero when any entry cannot be decoded.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.New(catalog.Config{Path: settings.Catalog.Path}, nil)
			if err != nil {
				return err
			}
			defer cat.Close()

			results := cat.ProbeAll()
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Printf("FAIL %-24s %s: %v\n", r.Entry.Name, r.Entry.File, r.Err)
					continue
				}
				fmt.Printf("ok   %-24s %s (%v, %d Hz, %d ch)\n",
					r.Entry.Name, r.Entry.File,
					r.Info.Duration().Round(time.Millisecond),
					r.Info.SampleRate, r.Info.NumChannels)
			}

			if failed > 0 {
				return errors.Newf("%d of %d catalog entries failed validation", failed, len(results)).
					Component("catalog").
					Category(errors.CategoryFileParsing).
					Context("catalog", cat.Path()).
					Build()
			}

			fmt.Printf("\nValidated %d entries\n", len(results))
			return nil
		},
	}

	return validateCmd
}
