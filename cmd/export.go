package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lukemcguire/backlinkwatch/importer"
	"github.com/lukemcguire/backlinkwatch/report"
	"github.com/lukemcguire/backlinkwatch/store"
)

func newExportCommand() *cobra.Command {
	var format, outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored backlinks as CSV or JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "csv" && format != "json" {
				return fmt.Errorf("unsupported format %q (want csv or json)", format)
			}

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
			recs, err := st.List(ctx, store.Filter{})
			if err != nil {
				return err
			}

			w, closeOut, err := openOutput(cmd.OutOrStdout(), outPath)
			if err != nil {
				return err
			}
			if format == "json" {
				err = report.WriteJSON(w, recs)
			} else {
				err = report.WriteExportCSV(w, recs)
			}
			if cerr := closeOut(); err == nil {
				err = cerr
			}
			return err
		},
	}

	cmd.Flags().StringVar(&format, "format", "csv", "output format (csv, json)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "output file (- for stdout)")
	return cmd
}

func newReportCommand() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write an Excel report of every stored backlink",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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
			recs, err := st.All(ctx)
			if err != nil {
				return err
			}

			now := time.Now()
			if outPath == "" {
				outPath = fmt.Sprintf("backlink-report-%s.xlsx", now.UTC().Format("2006-01-02"))
			}
			w, closeOut, err := openOutput(cmd.OutOrStdout(), outPath)
			if err != nil {
				return err
			}
			err = report.WriteXLSX(w, recs, now)
			if cerr := closeOut(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			if outPath != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote report for %d backlinks to %s\n", len(recs), outPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default backlink-report-<date>.xlsx, - for stdout)")
	return cmd
}

func newTemplateCommand() *cobra.Command {
	var format, outPath string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write an import template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "csv" && format != "xlsx" {
				return fmt.Errorf("unsupported format %q (want csv or xlsx)", format)
			}
			w, closeOut, err := openOutput(cmd.OutOrStdout(), outPath)
			if err != nil {
				return err
			}
			if format == "xlsx" {
				err = importer.WriteXLSXTemplate(w)
			} else {
				err = importer.WriteTemplate(w)
			}
			if cerr := closeOut(); err == nil {
				err = cerr
			}
			return err
		},
	}

	cmd.Flags().StringVar(&format, "format", "csv", "template format (csv, xlsx)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "output file (- for stdout)")
	return cmd
}
