package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lukemcguire/backlinkwatch/checker"
	"github.com/lukemcguire/backlinkwatch/result"
)

var (
	titleStyle       = lipgloss.NewStyle().Bold(true)
	successStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	headerStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	categoryStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	dimStyle         = lipgloss.NewStyle().Faint(true)
	urlStyle         = lipgloss.NewStyle()
	statusErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// categoryOrder defines the display order for error categories (most to least actionable).
var categoryOrder = []result.ErrorCategory{
	result.Category4xx,
	result.Category5xx,
	result.Category3xx,
	result.CategoryTimeout,
	result.CategoryDNSFailure,
	result.CategoryConnectionRefused,
	result.CategoryTLS,
	result.CategoryRedirectLoop,
	result.CategoryUnknown,
}

// RenderSummary produces a Lip Gloss styled summary of a check run.
func RenderSummary(res *checker.RunResult) string {
	if res == nil {
		return errorStyle.Render("No results available.")
	}

	var builder strings.Builder
	stats := res.Stats

	grouped := make(map[result.ErrorCategory][]checker.Outcome)
	var missing []checker.Outcome
	for _, o := range res.Outcomes {
		switch {
		case isFailure(o):
			cat := o.Verification.ErrorCategory
			if cat == "" {
				cat = result.CategoryUnknown
			}
			grouped[cat] = append(grouped[cat], o)
		case isMissing(o):
			missing = append(missing, o)
		}
	}

	if len(grouped) == 0 && len(missing) == 0 {
		builder.WriteString(successStyle.Render("All backlinks found!"))
		builder.WriteString("\n")
		builder.WriteString(dimStyle.Render(fmt.Sprintf(
			"Checked %d backlinks in %s", stats.Checked, stats.Duration.Round(time.Millisecond))))
		builder.WriteString("\n")
		writeSkipped(&builder, stats)
		return builder.String()
	}

	if len(missing) > 0 {
		builder.WriteString(categoryStyle.Render(fmt.Sprintf("## Link Missing (%d)", len(missing))))
		builder.WriteString("\n")
		rows := make([][]string, 0, len(missing))
		for _, o := range missing {
			rows = append(rows, []string{o.Record.LiveLink, o.Record.TargetURL, o.Record.TargetAnchor})
		}
		builder.WriteString(renderTable([]string{"Page", "Target", "Anchor"}, rows, -1))
		builder.WriteString("\n\n")
	}

	for _, cat := range categoryOrder {
		outcomes, exists := grouped[cat]
		if !exists || len(outcomes) == 0 {
			continue
		}

		builder.WriteString(categoryStyle.Render(fmt.Sprintf("## %s (%d)", result.FormatCategory(cat), len(outcomes))))
		builder.WriteString("\n")

		rows := make([][]string, 0, len(outcomes))
		for _, o := range outcomes {
			status := o.Verification.ErrorDetail
			if status == "" {
				status = strconv.Itoa(o.Verification.HTTPStatus)
			}
			rows = append(rows, []string{o.Record.LiveLink, status, strconv.Itoa(o.Record.RetryCount)})
		}
		builder.WriteString(renderTable([]string{"Page", "Status", "Retries"}, rows, 1))
		builder.WriteString("\n\n")
	}

	builder.WriteString(titleStyle.Render(fmt.Sprintf(
		"Checked %d backlinks: %d found, %d missing, %d errors, %d unreachable (%s)",
		stats.Checked, stats.LinksFound, stats.Missing(), stats.Errors, stats.Unreachable,
		stats.Duration.Round(time.Millisecond),
	)))
	builder.WriteString("\n")
	writeSkipped(&builder, stats)

	return builder.String()
}

// renderTable draws a rounded table; statusCol is highlighted, -1 for none.
func renderTable(headers []string, rows [][]string, statusCol int) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == statusCol {
				return statusErrorStyle
			}
			return urlStyle
		}).
		Rows(rows...).
		Render()
}

func writeSkipped(b *strings.Builder, stats result.BatchStats) {
	if stats.Skipped == 0 {
		return
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("%d backlinks skipped (run interrupted)", stats.Skipped)))
	b.WriteString("\n")
}
