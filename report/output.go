// Package report renders backlink records for people and other tools: JSON
// and CSV exports, an Excel workbook and a plain-text batch summary.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/lukemcguire/backlinkwatch/backlink"
)

// ExportHeader is the column order of the CSV export.
var ExportHeader = []string{
	"Live Link", "Target URL", "Target Anchor", "Status",
	"Link Found", "HTTP Status", "Link Context", "Last Checked",
}

// WriteJSON writes the records as an indented JSON array.
func WriteJSON(w io.Writer, records []backlink.Record) error {
	if records == nil {
		records = []backlink.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("write json output: %w", err)
	}
	return nil
}

// WriteExportCSV writes the records in the dashboard export format. The
// header row is written even when there are no records.
func WriteExportCSV(w io.Writer, records []backlink.Record) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(ExportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, rec := range records {
		row := []string{
			rec.LiveLink,
			rec.TargetURL,
			rec.TargetAnchor,
			string(rec.Status),
			yesNo(rec.LinkFound),
			statusCodeStr(rec.HTTPStatus),
			rec.Context,
			lastCheckedStr(rec.LastChecked),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv record for %s: %w", rec.LiveLink, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv output: %w", err)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// statusCodeStr renders an HTTP status, "N/A" when no response was received.
func statusCodeStr(code int) string {
	if code == 0 {
		return "N/A"
	}
	return strconv.Itoa(code)
}

func lastCheckedStr(t *time.Time) string {
	if t == nil {
		return "Never"
	}
	return t.UTC().Format(time.RFC3339)
}
