// Package favorites implements the favorites listing and export command.
package favorites

import (
	"github.com/spf13/cobra"

	"github.com/fieldguide/fieldguide-go/cmd/history"
	"github.com/fieldguide/fieldguide-go/internal/errors"
	"github.com/fieldguide/fieldguide-go/internal/runtime"
)

// Command creates the favorites command.
func Command(ctx *runtime.Context) *cobra.Command {
	var removeID string
	var exportPath string
	var exportFormat string

	favoritesCmd := &cobra.Command{
		Use:   "favorites",
		Short: "Show, remove or export saved favorites",
		RunE: func(cmd *cobra.Command, args []string) error {
			if removeID != "" {
				return ctx.Sessions.RemoveFavorite(removeID)
			}

			entries := ctx.Sessions.Favorites()
			if exportPath != "" {
				if len(entries) == 0 {
					return errors.Newf("no favorites to export").
						Category(errors.CategoryValidation).
						Component("favorites").
						Build()
				}
				records := ctx.Sessions.ExportRecords(entries)
				if exportFormat == "json" {
					return history.WriteJSON(exportPath, records)
				}
				return history.WriteCSV(exportPath, records)
			}

			for i := range entries {
				e := &entries[i]
				cmd.Printf("%s  %s  %s\n", e.ID, e.Timestamp.Format("2006-01-02 15:04:05"), e.Class())
			}
			return nil
		},
	}

	favoritesCmd.Flags().StringVar(&removeID, "remove", "", "remove the favorite with this ID")
	favoritesCmd.Flags().StringVar(&exportPath, "export", "", "write the favorites to a file")
	favoritesCmd.Flags().StringVar(&exportFormat, "format", "csv", "export format (csv or json)")
	return favoritesCmd
}
