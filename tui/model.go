// Package tui provides the Bubble Tea terminal UI for backlinkwatch,
// displaying live check progress and a styled summary of the run.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lukemcguire/backlinkwatch/checker"
	"github.com/lukemcguire/backlinkwatch/result"
)

// RunFunc executes one check run. Progress events are read from the channel
// passed to NewModel.
type RunFunc func(ctx context.Context) (*checker.RunResult, error)

const maxBarWidth = 60

// Model is the Bubble Tea model for the check TUI.
type Model struct {
	ctx        context.Context
	cancel     context.CancelFunc
	run        RunFunc
	spinner    spinner.Model
	bar        progress.Model
	progressCh <-chan checker.CheckEvent

	checked  int
	total    int
	found    int
	failed   int
	current  string
	lastErr  string
	quitting bool
	done     bool
	result   *checker.RunResult
	err      error
	width    int
}

// NewModel creates a TUI model that executes run and renders events from
// progressCh.
func NewModel(ctx context.Context, cancel context.CancelFunc, run RunFunc, progressCh <-chan checker.CheckEvent) Model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		ctx:        ctx,
		cancel:     cancel,
		run:        run,
		spinner:    spin,
		bar:        progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		progressCh: progressCh,
	}
}

// Init starts the spinner, the run, and the progress listener concurrently.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startRun(), waitForProgress(m.progressCh))
}

// startRun returns a tea.Cmd that executes the run and sends CheckDoneMsg.
func (m Model) startRun() tea.Cmd {
	return func() tea.Msg {
		res, err := m.run(m.ctx)
		if err != nil {
			err = fmt.Errorf("check: %w", err)
		}
		return CheckDoneMsg{Result: res, Err: err}
	}
}

// Update handles messages from the Bubble Tea runtime.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(max(msg.Width-4, 10), maxBarWidth)

	case CheckProgressMsg:
		evt := msg.Event
		m.checked = evt.Checked
		m.total = evt.Total
		m.found = evt.Found
		m.failed = evt.Failed
		m.current = evt.LiveLink
		if evt.Status.Failed() {
			m.lastErr = fmt.Sprintf("%s: %s", evt.LiveLink, evt.Detail)
		}
		return m, waitForProgress(m.progressCh)

	case progressClosedMsg:
		return m, nil

	case CheckDoneMsg:
		m.done = true
		m.result = msg.Result
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the current TUI state.
func (m Model) View() string {
	if m.done && m.err != nil {
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	}
	if m.done && m.result != nil {
		return RenderSummary(m.result)
	}

	percent := 0.0
	if m.total > 0 {
		percent = float64(m.checked) / float64(m.total)
	}
	view := fmt.Sprintf("%s Checking backlinks... %d/%d, %d found, %d failed\n%s\n%s\n",
		m.spinner.View(), m.checked, m.total, m.found, m.failed,
		m.bar.ViewAs(percent),
		dimStyle.Render("  "+m.current))
	if m.lastErr != "" {
		view += statusErrorStyle.Render("  last failure: "+m.lastErr) + "\n"
	}
	return view
}

// HasProblems reports whether the run left any backlink missing or failed.
func (m Model) HasProblems() bool {
	if m.result == nil {
		return m.err != nil
	}
	st := m.result.Stats
	return st.Missing() > 0 || st.Errors > 0 || st.Unreachable > 0
}

// Quitting reports whether the user aborted the run.
func (m Model) Quitting() bool {
	return m.quitting
}

// GetResult returns the run result for output formatting.
func (m Model) GetResult() *checker.RunResult {
	return m.result
}

// isFailure reports whether an outcome belongs in the failure tables.
func isFailure(o checker.Outcome) bool {
	return o.Verification.Status.Failed()
}

// isMissing reports whether the page was fetched but carried no target link.
func isMissing(o checker.Outcome) bool {
	return o.Verification.Status == result.StatusLive && !o.Verification.LinkFound
}
