package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukemcguire/backlinkwatch/backlink"
	"github.com/lukemcguire/backlinkwatch/checker"
	"github.com/lukemcguire/backlinkwatch/result"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func partnerServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Path {
		case "/with-link":
			fmt.Fprint(w, `<html><body><p>Thanks to <a href="https://example.com/">Example Site</a>.</p></body></html>`)
		case "/without-link":
			fmt.Fprint(w, `<html><body><p>No links here.</p></body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTemplateCommand(t *testing.T) {
	out, err := execute(t, "template", "--format", "csv", "--out", "-")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "live_link,target_url,target_anchor"))

	_, err = execute(t, "template", "--format", "pdf")
	assert.ErrorContains(t, err, "unsupported format")
}

func TestImportExportAndStats(t *testing.T) {
	db := filepath.Join(t.TempDir(), "backlinks.db")
	csvPath := writeFile(t, "links.csv", "live_link,target_url,target_anchor\n"+
		"https://blog.example.org/a,https://example.com,Example\n"+
		"https://blog.example.org/b,,Example\n"+
		"https://blog.example.org/c,https://example.com/pricing,Pricing\n")

	out, err := execute(t, "--db", db, "import", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 backlinks")
	assert.Contains(t, out, "row 3: target_url is required")

	out, err = execute(t, "--db", db, "export", "--format", "json", "--out", "-")
	require.NoError(t, err)
	var recs []backlink.Record
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	assert.Len(t, recs, 2)

	out, err = execute(t, "--db", db, "export", "--format", "csv", "--out", "-")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 3)

	out, err = execute(t, "--db", db, "stats")
	require.NoError(t, err)
	assert.Regexp(t, `Total\s+2`, out)
	assert.Regexp(t, `Pending\s+2\s+100.00%`, out)
}

func TestImportMissingFile(t *testing.T) {
	db := filepath.Join(t.TempDir(), "backlinks.db")
	_, err := execute(t, "--db", db, "import", filepath.Join(t.TempDir(), "nope.csv"))
	assert.ErrorContains(t, err, "failed to open")
}

func TestReportCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "backlinks.db")
	csvPath := writeFile(t, "links.csv", "live_link,target_url,target_anchor\n"+
		"https://blog.example.org/a,https://example.com,Example\n")
	_, err := execute(t, "--db", db, "import", csvPath)
	require.NoError(t, err)

	outPath := filepath.Join(t.TempDir(), "report.xlsx")
	_, err = execute(t, "--db", db, "report", "--out", outPath)
	require.NoError(t, err)

	info, err := os.Stat(outPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestCheckCommandReportsProblems(t *testing.T) {
	srv := partnerServer(t)
	db := filepath.Join(t.TempDir(), "backlinks.db")
	csvPath := writeFile(t, "links.csv", "live_link,target_url,target_anchor\n"+
		srv.URL+"/with-link,https://example.com,Example Site\n"+
		srv.URL+"/without-link,https://example.com,Example Site\n")
	_, err := execute(t, "--db", db, "import", csvPath)
	require.NoError(t, err)

	out, err := execute(t, "--db", db, "check", "--force")
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, ExitProblems, exitErr.Code)
	assert.Contains(t, out, "Backlinks needing attention")
	assert.Contains(t, out, srv.URL+"/without-link")
	assert.Contains(t, out, "Checked 2 backlinks: 1 found, 1 missing")
}

func TestProblemStatus(t *testing.T) {
	tests := []struct {
		name  string
		stats result.BatchStats
		want  bool
	}{
		{name: "all found", stats: result.BatchStats{Checked: 2, Live: 2, LinksFound: 2}},
		{name: "missing", stats: result.BatchStats{Checked: 1, Live: 1}, want: true},
		{name: "error", stats: result.BatchStats{Checked: 1, Errors: 1}, want: true},
		{name: "unreachable", stats: result.BatchStats{Checked: 1, Unreachable: 1}, want: true},
		{name: "nothing due", stats: result.BatchStats{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := problemStatus(&checker.RunResult{Stats: tt.stats})
			if tt.want {
				var exitErr *ExitError
				require.ErrorAs(t, err, &exitErr)
				assert.Equal(t, ExitProblems, exitErr.Code)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOpenOutput(t *testing.T) {
	var buf bytes.Buffer
	w, closeOut, err := openOutput(&buf, "-")
	require.NoError(t, err)
	assert.Same(t, &buf, w)
	assert.NoError(t, closeOut())

	path := filepath.Join(t.TempDir(), "out.csv")
	w, closeOut, err = openOutput(&buf, path)
	require.NoError(t, err)
	_, err = io.WriteString(w, "x")
	require.NoError(t, err)
	require.NoError(t, closeOut())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x", string(raw))
}
