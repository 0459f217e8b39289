package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print backlink counts by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			s, err := st.Stats(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rows := []struct {
				label string
				n     int
			}{
				{"Live", s.Live},
				{"Links found", s.LinksFound},
				{"Errors", s.Errors},
				{"Unreachable", s.Unreachable},
				{"Pending", s.Pending},
				{"Not found (404)", s.NotFound},
				{"Redirects", s.Redirects},
				{"Exact matches", s.ExactMatches},
				{"Partial matches", s.PartialMatches},
			}
			fmt.Fprintf(out, "%-16s %6d\n", "Total", s.Total)
			for _, r := range rows {
				fmt.Fprintf(out, "%-16s %6d  %7s\n", r.label, r.n, s.Percent(r.n))
			}
			return nil
		},
	}
}
