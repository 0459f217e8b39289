package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lukemcguire/backlinkwatch/checker"
)

// CheckProgressMsg reports one checked record.
type CheckProgressMsg struct {
	Event checker.CheckEvent
}

// CheckDoneMsg signals the run has completed.
type CheckDoneMsg struct {
	Result *checker.RunResult
	Err    error
}

// progressClosedMsg is sent once the progress channel is closed. The run
// result still arrives through CheckDoneMsg.
type progressClosedMsg struct{}

// waitForProgress returns a tea.Cmd that reads one event from the progress
// channel.
func waitForProgress(ch <-chan checker.CheckEvent) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return progressClosedMsg{}
		}
		return CheckProgressMsg{Event: evt}
	}
}
