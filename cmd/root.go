package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fieldguide/fieldguide-go/cmd/catalog"
	"github.com/fieldguide/fieldguide-go/cmd/collection"
	"github.com/fieldguide/fieldguide-go/cmd/describe"
	"github.com/fieldguide/fieldguide-go/cmd/favorites"
	"github.com/fieldguide/fieldguide-go/cmd/history"
	"github.com/fieldguide/fieldguide-go/cmd/identify"
	"github.com/fieldguide/fieldguide-go/cmd/sound"
	"github.com/fieldguide/fieldguide-go/internal/runtime"
)

// RootCommand creates and returns the root command
func RootCommand(ctx *runtime.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fieldguide",
		Short: "FieldGuide species identification CLI",
	}

	subcommands := []*cobra.Command{
		identify.Command(ctx),
		sound.Command(ctx),
		describe.Command(ctx),
		catalog.Command(ctx),
		collection.Command(ctx),
		history.Command(ctx),
		favorites.Command(ctx),
	}
	rootCmd.AddCommand(subcommands...)

	return rootCmd
}
