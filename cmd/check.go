package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/lukemcguire/backlinkwatch/backlink"
	"github.com/lukemcguire/backlinkwatch/checker"
	"github.com/lukemcguire/backlinkwatch/logger"
	"github.com/lukemcguire/backlinkwatch/monitor"
	"github.com/lukemcguire/backlinkwatch/report"
	"github.com/lukemcguire/backlinkwatch/tui"
)

type checkOptions struct {
	force   bool
	limit   int
	ids     []int64
	useTUI  bool
	jsonOut bool
}

func newCheckCommand() *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the backlinks that are due",
		Long: `Check fetches the partner page of every due backlink and records whether the
target link is still present. Records never checked come first, then failed
records below the retry ceiling, then the least recently checked.

--force checks every stored backlink; --id checks only the given records.
The exit status is 2 when any checked backlink is missing or failing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.openStore(ctx); err != nil {
				return err
			}

			limit := a.cfg.Check.BatchLimit
			if cmd.Flags().Changed("limit") {
				limit = opts.limit
			}

			if opts.useTUI {
				// Log lines would corrupt the interactive view.
				a.log = logger.NewNop()
				return runCheckTUI(ctx, a, limit, opts)
			}

			res, err := runCheck(ctx, a.newService(limit, nil), opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			recs := outcomeRecords(res)
			if opts.jsonOut {
				if err := report.WriteJSON(out, recs); err != nil {
					return err
				}
			} else {
				report.PrintResults(out, recs, res.Stats)
			}
			return problemStatus(res)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.force, "force", false, "check every backlink, not only the due ones")
	flags.IntVar(&opts.limit, "limit", 0, "maximum due backlinks to check (0 for no limit, default from config)")
	flags.Int64SliceVar(&opts.ids, "id", nil, "check only these backlink ids (repeatable)")
	flags.BoolVar(&opts.useTUI, "tui", false, "show live progress in an interactive view")
	flags.BoolVar(&opts.jsonOut, "json", false, "print the checked records as JSON")
	cmd.MarkFlagsMutuallyExclusive("force", "id")
	cmd.MarkFlagsMutuallyExclusive("tui", "json")

	return cmd
}

func runCheck(ctx context.Context, svc *monitor.Service, opts checkOptions) (*checker.RunResult, error) {
	if len(opts.ids) > 0 {
		return svc.CheckIDs(ctx, opts.ids)
	}
	return svc.CheckDue(ctx, opts.force)
}

func runCheckTUI(ctx context.Context, a *app, limit int, opts checkOptions) error {
	progressCh := make(chan checker.CheckEvent, 100)
	svc := a.newService(limit, nil, checker.WithProgress(progressCh))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := tui.NewModel(ctx, cancel, func(ctx context.Context) (*checker.RunResult, error) {
		defer close(progressCh)
		return runCheck(ctx, svc, opts)
	}, progressCh)

	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return fmt.Errorf("failed to run interface: %w", err)
	}

	m, ok := final.(tui.Model)
	if !ok {
		return errors.New("unexpected interface model")
	}
	if m.Quitting() {
		return &ExitError{Code: ExitFailure}
	}
	if m.HasProblems() {
		return &ExitError{Code: ExitProblems}
	}
	return nil
}

func outcomeRecords(res *checker.RunResult) []backlink.Record {
	recs := make([]backlink.Record, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		recs = append(recs, o.Record)
	}
	return recs
}

// problemStatus maps a finished run to ExitProblems when any backlink is
// missing or failing.
func problemStatus(res *checker.RunResult) error {
	st := res.Stats
	if st.Missing() > 0 || st.Errors > 0 || st.Unreachable > 0 {
		return &ExitError{Code: ExitProblems}
	}
	return nil
}
