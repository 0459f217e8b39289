package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lukemcguire/backlinkwatch/backlink"
	"github.com/lukemcguire/backlinkwatch/result"
)

func TestPrintResults_AllFound(t *testing.T) {
	var buf bytes.Buffer
	records := []backlink.Record{{LiveLink: "https://blog.test", Status: result.StatusLive, LinkFound: true}}
	PrintResults(&buf, records, result.BatchStats{Checked: 1, Live: 1, LinksFound: 1})

	want := "All backlinks found!\nChecked 1 backlinks: 1 found, 0 missing, 0 errors, 0 unreachable\n"
	if got := buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPrintResults_WithIssues(t *testing.T) {
	var buf bytes.Buffer
	records := []backlink.Record{
		{LiveLink: "https://blog.test/ok", TargetURL: "https://example.com", Status: result.StatusLive, LinkFound: true},
		{LiveLink: "https://blog.test/gone", TargetURL: "https://example.com", TargetAnchor: "My Site", Status: result.StatusError, HTTPStatus: 404, LastError: "Page not found (404)"},
		{LiveLink: "https://blog.test/removed", TargetURL: "https://example.com", TargetAnchor: "My Site", Status: result.StatusLive},
	}
	stats := result.BatchStats{Checked: 3, Live: 2, LinksFound: 1, Errors: 1, Skipped: 2, Removed: 1}

	PrintResults(&buf, records, stats)
	got := buf.String()

	for _, want := range []string{
		"Backlinks needing attention:",
		"Page: https://blog.test/gone",
		"Status: error - Page not found (404)",
		"Page: https://blog.test/removed",
		"Status: live - Target link not found on page",
		"Checked 3 backlinks: 1 found, 1 missing, 1 errors, 0 unreachable, 2 skipped, 1 removed",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "blog.test/ok") {
		t.Error("healthy backlinks should not be listed")
	}
}
