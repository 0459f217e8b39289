package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lukemcguire/backlinkwatch/importer"
	"github.com/lukemcguire/backlinkwatch/logger"
)

func newImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import backlinks from a CSV or XLSX file",
		Long: `Import reads a CSV file (or an .xlsx workbook) with the columns live_link,
target_url and target_anchor. Rows with an empty field are rejected and listed;
the remaining rows are stored as pending backlinks.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}

			parsed, err := readImport(args[0])
			if err != nil {
				return err
			}

			n, err := st.InsertMany(ctx, parsed.Records)
			if err != nil {
				return fmt.Errorf("failed to import backlinks: %w", err)
			}
			a.log.Info("backlinks imported",
				logger.String("file", args[0]),
				logger.Int("imported", n),
				logger.Int("rejected", len(parsed.Errors)),
			)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d backlinks from %s\n", n, args[0])
			if len(parsed.Errors) > 0 {
				fmt.Fprintf(out, "Rejected %d rows:\n", len(parsed.Errors))
				for _, e := range parsed.Errors {
					fmt.Fprintf(out, "  row %d: %s\n", e.Row, e.Error)
				}
			}
			return nil
		},
	}
}

func readImport(path string) (importer.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return importer.Result{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return importer.ReadXLSX(f)
	}
	return importer.ReadCSV(f)
}
