// Package history implements the identification history command and its
// CSV/JSON export.
package history

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fieldguide/fieldguide-go/internal/errors"
	"github.com/fieldguide/fieldguide-go/internal/runtime"
	"github.com/fieldguide/fieldguide-go/internal/session"
)

// Command creates the history command.
func Command(ctx *runtime.Context) *cobra.Command {
	var exportPath string
	var exportFormat string

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show or export this session's identification history",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries := ctx.Sessions.History()
			if exportPath != "" {
				return export(ctx, entries, exportPath, exportFormat)
			}

			for i := range entries {
				e := &entries[i]
				marks := ""
				if e.HasWarning() {
					marks += " [low confidence]"
				}
				if ctx.Sessions.IsFavorite(*e) {
					marks += " [favorite]"
				}
				cmd.Printf("%s  %-6s %s%s\n",
					e.Timestamp.Format("2006-01-02 15:04:05"), e.Kind, e.Class(), marks)
			}
			return nil
		},
	}

	historyCmd.Flags().StringVar(&exportPath, "export", "", "write the history to a file")
	historyCmd.Flags().StringVar(&exportFormat, "format", "csv", "export format (csv or json)")
	return historyCmd
}

func export(ctx *runtime.Context, entries []session.Entry, path, format string) error {
	if len(entries) == 0 {
		return errors.Newf("no records to export").
			Category(errors.CategoryValidation).
			Component("history").
			Build()
	}

	records := ctx.Sessions.ExportRecords(entries)

	switch format {
	case "json":
		return WriteJSON(path, records)
	case "csv":
		return WriteCSV(path, records)
	default:
		return errors.Newf("unsupported export format %q", format).
			Category(errors.CategoryValidation).
			Component("history").
			Build()
	}
}

// WriteJSON writes export records as a JSON document.
func WriteJSON(path string, records []session.ExportRecord) error {
	encoded, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, encoded, 0o644)
}

// WriteCSV writes export records as CSV rows.
func WriteCSV(path string, records []session.ExportRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"id", "kind", "class", "confidence", "warning", "timestamp", "image"}); err != nil {
		return err
	}
	for i := range records {
		rec := &records[i]
		row := []string{
			rec.ID,
			string(rec.Kind),
			rec.Class,
			strconv.FormatFloat(rec.Confidence, 'f', 4, 64),
			rec.WarningType,
			rec.Timestamp,
			rec.ImageRef,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
