package report

import (
	"fmt"
	"io"

	"github.com/lukemcguire/backlinkwatch/backlink"
	"github.com/lukemcguire/backlinkwatch/result"
)

// PrintResults writes the records that need attention and a summary line
// for a finished batch.
func PrintResults(w io.Writer, records []backlink.Record, stats result.BatchStats) {
	writef := func(format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

	var issues []backlink.Record
	for _, rec := range records {
		if rec.Status.Failed() || !rec.LinkFound {
			issues = append(issues, rec)
		}
	}

	if len(issues) == 0 {
		writef("All backlinks found!\n")
	} else {
		writef("Backlinks needing attention:\n")
		for i, rec := range issues {
			writef("  Page: %s\n", rec.LiveLink)
			writef("  Target: %s (%q)\n", rec.TargetURL, rec.TargetAnchor)
			writef("  Status: %s\n", describe(rec))
			if i < len(issues)-1 {
				writef("\n")
			}
		}
	}
	writef("Checked %d backlinks: %d found, %d missing, %d errors, %d unreachable",
		stats.Checked, stats.LinksFound, stats.Missing(), stats.Errors, stats.Unreachable)
	if stats.Skipped > 0 {
		writef(", %d skipped", stats.Skipped)
	}
	if stats.Removed > 0 {
		writef(", %d removed", stats.Removed)
	}
	writef("\n")
}

func describe(rec backlink.Record) string {
	switch {
	case rec.LastError != "" && rec.Status.Failed():
		return fmt.Sprintf("%s - %s", rec.Status, rec.LastError)
	case rec.Status == result.StatusLive:
		return "live - " + result.NotFoundContext
	default:
		return string(rec.Status)
	}
}
