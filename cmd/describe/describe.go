// Package describe implements the conversational text-identification
// command.
package describe

import (
	"bufio"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fieldguide/fieldguide-go/internal/predict"
	"github.com/fieldguide/fieldguide-go/internal/runtime"
)

// Command creates the describe command: an interactive loop submitting
// description turns until EOF or /new.
func Command(ctx *runtime.Context) *cobra.Command {
	var category string

	describeCmd := &cobra.Command{
		Use:   "describe",
		Short: "Identify a species from a text description, conversationally",
		RunE: func(cmd *cobra.Command, args []string) error {
			if category != "" {
				ctx.Describe.SetCategory(category)
			}

			scanner := bufio.NewScanner(os.Stdin)
			cmd.Println("Describe the species (empty line to quit, /new to start over):")
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					break
				}
				if line == "/new" {
					ctx.Describe.Reset()
					cmd.Println("started a new chat")
					continue
				}

				turn, err := ctx.Describe.Submit(cmd.Context(), line)
				if err != nil {
					cmd.PrintErrf("error: %v\n", err)
					continue
				}

				cmd.Println(turn.Text)
				for _, match := range turn.Matches {
					cmd.Printf("  %-30s %.2f\n", matchLabel(&match), match.Confidence)
				}
				for _, question := range turn.FollowUpPrompts {
					cmd.Printf("  ? %s\n", question)
				}
			}
			return scanner.Err()
		},
	}

	describeCmd.Flags().StringVar(&category, "category", "", "restrict matches to one category (birds, butterflies)")
	return describeCmd
}

func matchLabel(m *predict.Match) string {
	if m.CommonName != "" {
		return m.CommonName
	}
	if m.SpeciesID != "" {
		return m.SpeciesID
	}
	return m.Key
}
