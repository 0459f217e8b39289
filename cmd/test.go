package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lukemcguire/backlinkwatch/backlink"
	"github.com/lukemcguire/backlinkwatch/checker"
)

func newTestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "test <live-link> <target-url> <anchor-text>",
		Short: "Verify one placement without storing it",
		Long: `Test fetches live-link once and reports whether it links to target-url with
the expected anchor text. Nothing is written to the database. The exit status
is 2 when the link is not found.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			verifier := checker.NewDefaultVerifier(a.cfg.Checker(), a.log)
			v, err := verifier.Verify(cmd.Context(), backlink.New(args[0], args[1], args[2]))
			if err != nil {
				return fmt.Errorf("failed to verify placement: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(v); err != nil {
				return err
			}
			if !v.LinkFound {
				return &ExitError{Code: ExitProblems}
			}
			return nil
		},
	}
}
