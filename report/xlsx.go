package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/lukemcguire/backlinkwatch/backlink"
)

const (
	summarySheet = "Summary"
	detailSheet  = "Detailed Backlinks"
	issuesSheet  = "Errors & Issues"
)

var (
	detailHeader = []string{
		"ID", "Live Link", "Target URL", "Target Anchor", "Status", "Link Found",
		"HTTP Status", "Anchor Match", "Link Context", "Last Error", "Retry Count",
		"Last Checked", "Created At",
	}
	issuesHeader = []string{
		"Live Link", "Target URL", "Status", "HTTP Status", "Error Description",
		"Retry Count", "Last Checked",
	}
)

// WriteXLSX writes an Excel workbook with a summary sheet, one row per
// record, and a sheet listing failed checks.
func WriteXLSX(w io.Writer, records []backlink.Record, generatedAt time.Time) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename summary sheet: %w", err)
	}
	if err := writeSummary(f, backlink.Summarize(records), generatedAt); err != nil {
		return err
	}
	if err := writeDetail(f, records); err != nil {
		return err
	}
	if err := writeIssues(f, records); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, s backlink.Stats, generatedAt time.Time) error {
	rows := [][]any{
		{"Metric", "Value", "Percentage"},
		{"Total Backlinks", s.Total, "100%"},
		{"Live Links", s.Live, s.Percent(s.Live)},
		{"Error Links", s.Errors, s.Percent(s.Errors)},
		{"Unreachable Links", s.Unreachable, s.Percent(s.Unreachable)},
		{"Links Found", s.LinksFound, s.Percent(s.LinksFound)},
		{"Pending Links", s.Pending, s.Percent(s.Pending)},
		{"404 Errors", s.NotFound, s.Percent(s.NotFound)},
		{"Redirects", s.Redirects, s.Percent(s.Redirects)},
		{"Exact Anchor Matches", s.ExactMatches, s.Percent(s.ExactMatches)},
		{"Partial Anchor Matches", s.PartialMatches, s.Percent(s.PartialMatches)},
		{},
		{"Generated", generatedAt.UTC().Format(time.RFC3339)},
	}
	if err := writeRows(f, summarySheet, rows); err != nil {
		return err
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 30); err != nil {
		return fmt.Errorf("size summary columns: %w", err)
	}
	return boldHeader(f, summarySheet, len(rows[0]))
}

func writeDetail(f *excelize.File, records []backlink.Record) error {
	if _, err := f.NewSheet(detailSheet); err != nil {
		return fmt.Errorf("create detail sheet: %w", err)
	}

	rows := make([][]any, 0, len(records)+1)
	rows = append(rows, stringsToRow(detailHeader))
	for _, rec := range records {
		rows = append(rows, []any{
			rec.ID,
			rec.LiveLink,
			rec.TargetURL,
			rec.TargetAnchor,
			string(rec.Status),
			yesNo(rec.LinkFound),
			statusCodeStr(rec.HTTPStatus),
			string(rec.MatchType),
			rec.Context,
			rec.LastError,
			rec.RetryCount,
			lastCheckedStr(rec.LastChecked),
			rec.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	if err := writeRows(f, detailSheet, rows); err != nil {
		return err
	}

	last, err := excelize.CoordinatesToCellName(len(detailHeader), 1)
	if err != nil {
		return fmt.Errorf("detail filter range: %w", err)
	}
	if err := f.AutoFilter(detailSheet, "A1:"+last, nil); err != nil {
		return fmt.Errorf("detail filter: %w", err)
	}
	return boldHeader(f, detailSheet, len(detailHeader))
}

func writeIssues(f *excelize.File, records []backlink.Record) error {
	if _, err := f.NewSheet(issuesSheet); err != nil {
		return fmt.Errorf("create issues sheet: %w", err)
	}

	rows := [][]any{stringsToRow(issuesHeader)}
	for _, rec := range records {
		if !rec.Status.Failed() {
			continue
		}
		rows = append(rows, []any{
			rec.LiveLink,
			rec.TargetURL,
			string(rec.Status),
			statusCodeStr(rec.HTTPStatus),
			rec.LastError,
			rec.RetryCount,
			lastCheckedStr(rec.LastChecked),
		})
	}
	if err := writeRows(f, issuesSheet, rows); err != nil {
		return err
	}
	return boldHeader(f, issuesSheet, len(issuesHeader))
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func boldHeader(f *excelize.File, sheet string, cols int) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9E1F2"}},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(cols, 1)
	if err != nil {
		return fmt.Errorf("%s header range: %w", sheet, err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("%s header style: %w", sheet, err)
	}
	return nil
}

func stringsToRow(values []string) []any {
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}
