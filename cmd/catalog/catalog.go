// Package catalog implements the species catalog listing command.
package catalog

import (
	"github.com/spf13/cobra"

	speciescatalog "github.com/fieldguide/fieldguide-go/internal/catalog"
	"github.com/fieldguide/fieldguide-go/internal/runtime"
)

// Command creates the catalog command.
func Command(ctx *runtime.Context) *cobra.Command {
	var refresh bool

	catalogCmd := &cobra.Command{
		Use:       "catalog <category>",
		Short:     "List the species catalog for a category",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"birds", "butterflies"},
		RunE: func(cmd *cobra.Command, args []string) error {
			category := args[0]
			if refresh {
				ctx.Catalog.Invalidate(category)
			}

			entry, err := ctx.Catalog.Get(cmd.Context(), category)
			if err != nil {
				return err
			}

			for i := range entry.Records {
				rec := &entry.Records[i]
				mark := " "
				if ctx.Ledger.Contains(rec.ID) {
					mark = "*"
				}
				cmd.Printf("%s %-40s %s\n", mark, rec.ID, rec.ScientificName)
			}
			cmd.Printf("\n%d species, %d collected (fetched %s)\n",
				len(entry.Records),
				collectedCount(ctx, entry.Records),
				entry.FetchedAt.Format("2006-01-02 15:04"))
			return nil
		},
	}

	catalogCmd.Flags().BoolVar(&refresh, "refresh", false, "drop the cached catalog and fetch a fresh one")
	return catalogCmd
}

func collectedCount(ctx *runtime.Context, records []speciescatalog.Species) int {
	count := 0
	for i := range records {
		if ctx.Ledger.Contains(records[i].ID) {
			count++
		}
	}
	return count
}
