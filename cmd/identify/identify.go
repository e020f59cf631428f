// Package identify implements the image identification command.
package identify

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fieldguide/fieldguide-go/internal/engine"
	"github.com/fieldguide/fieldguide-go/internal/runtime"
	"github.com/fieldguide/fieldguide-go/internal/session"
)

// Command creates the identify command. One file argument submits a single
// image; several submit a batch.
func Command(ctx *runtime.Context) *cobra.Command {
	var favorite bool

	identifyCmd := &cobra.Command{
		Use:   "identify <image> [image...]",
		Short: "Identify the species in one or more images",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runSingle(cmd, ctx, args[0], favorite)
			}
			return runBatch(cmd, ctx, args, favorite)
		},
	}

	identifyCmd.Flags().BoolVar(&favorite, "favorite", false, "save the result to favorites")
	return identifyCmd
}

func runSingle(cmd *cobra.Command, ctx *runtime.Context, path string, favorite bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	outcome, err := ctx.Engine.SubmitImage(cmd.Context(), path, path, f)
	if err != nil {
		return err
	}
	printOutcome(cmd, ctx, outcome)
	if favorite {
		return saveFavorite(cmd, ctx, outcome.Entry)
	}
	return nil
}

// saveFavorite toggles the entry in the favorites store; a repeat of a
// just-saved result removes it again.
func saveFavorite(cmd *cobra.Command, ctx *runtime.Context, entry session.Entry) error {
	added, err := ctx.Sessions.ToggleFavorite(entry)
	if err != nil {
		return err
	}
	if added {
		cmd.Println("saved to favorites")
	} else {
		cmd.Println("removed from favorites")
	}
	return nil
}

func runBatch(cmd *cobra.Command, ctx *runtime.Context, paths []string, favorite bool) error {
	items := make([]engine.BatchItem, 0, len(paths))
	var files []*os.File
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()

	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		files = append(files, f)
		items = append(items, engine.BatchItem{Filename: path, ImageRef: path, Image: f})
	}

	batch, err := ctx.Engine.SubmitBatch(cmd.Context(), items)
	if err != nil {
		return err
	}

	for i := range batch.Outcomes {
		printOutcome(cmd, ctx, &batch.Outcomes[i])
		if favorite {
			if err := saveFavorite(cmd, ctx, batch.Outcomes[i].Entry); err != nil {
				return err
			}
		}
	}
	for filename, itemErr := range batch.Failed {
		cmd.PrintErrf("%s: %v\n", filename, itemErr)
	}
	return nil
}

func printOutcome(cmd *cobra.Command, ctx *runtime.Context, outcome *engine.Outcome) {
	result := outcome.Entry.Result
	if result.Prediction == nil {
		cmd.Println("no classification")
		return
	}

	cmd.Printf("%s (confidence %.2f)\n", result.Prediction.Class, result.Prediction.Confidence)
	for _, top := range result.Prediction.TopPredictions {
		cmd.Printf("  %-40s %.2f\n", top.Class, top.Confidence)
	}
	if result.Warning != nil {
		cmd.Printf("warning: %s\n", result.Warning.Message)
	}
	if outcome.NewlyUnlocked {
		if note := ctx.Notifier.Current(); note != nil {
			cmd.Println(note.Message)
		} else {
			cmd.Println(fmt.Sprintf("unlocked %s", result.Prediction.Class))
		}
	}
}
