// Package collection implements the field-guide collection command.
package collection

import (
	"github.com/spf13/cobra"

	"github.com/fieldguide/fieldguide-go/internal/runtime"
)

// Command creates the collection command.
func Command(ctx *runtime.Context) *cobra.Command {
	var reset bool

	collectionCmd := &cobra.Command{
		Use:   "collection",
		Short: "Show the species you have unlocked",
		RunE: func(cmd *cobra.Command, args []string) error {
			if reset {
				if err := ctx.Ledger.Reset(); err != nil {
					return err
				}
				cmd.Println("collection reset")
				return nil
			}

			for _, id := range ctx.Ledger.IDs() {
				cmd.Println(id)
			}
			cmd.Printf("\nCollected: %d species\n", ctx.Ledger.Count())
			return nil
		},
	}

	collectionCmd.Flags().BoolVar(&reset, "reset", false, "clear the collection (cannot be undone)")
	return collectionCmd
}
