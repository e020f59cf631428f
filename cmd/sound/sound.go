// Package sound implements the audio identification command.
package sound

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/fieldguide/fieldguide-go/internal/runtime"
)

// Command creates the sound command.
func Command(ctx *runtime.Context) *cobra.Command {
	var favorite bool

	soundCmd := &cobra.Command{
		Use:   "sound <audiofile>",
		Short: "Identify a bird from an audio recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			outcome, err := ctx.Engine.SubmitSound(cmd.Context(), args[0], args[0], f)
			if err != nil {
				return err
			}

			result := outcome.Entry.Result
			if result.Prediction == nil {
				cmd.Println("no classification")
				return nil
			}
			cmd.Printf("%s (confidence %.2f)\n", result.Prediction.Class, result.Prediction.Confidence)
			if result.Warning != nil {
				cmd.Printf("warning: %s\n", result.Warning.Message)
			}
			if outcome.NewlyUnlocked {
				cmd.Println("+1 Added to your Field Guide!")
			}
			if favorite {
				if _, err := ctx.Sessions.ToggleFavorite(outcome.Entry); err != nil {
					return err
				}
				cmd.Println("saved to favorites")
			}
			return nil
		},
	}

	soundCmd.Flags().BoolVar(&favorite, "favorite", false, "save the result to favorites")
	return soundCmd
}
