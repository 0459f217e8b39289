// Package cmd implements the backlinkwatch command-line interface.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Process exit codes.
const (
	ExitOK       = 0
	ExitFailure  = 1 // the command could not run
	ExitProblems = 2 // the command ran and found missing or failing backlinks
)

// version is set at build time with -ldflags "-X .../cmd.version=...".
var version = "dev"

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "backlinkwatch",
		Short: "Verify that partner pages still link to your site",
		Long: `backlinkwatch keeps a list of backlink placements (a partner page, the URL it
should link to and the expected anchor text) and periodically checks that each
page is reachable and still carries the link.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// ExitError reports a non-zero exit status without an error message.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./backlinkwatch.yaml when present)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("db", "", "SQLite database path")

	// Lookup never returns nil for flags defined above.
	_ = viper.BindPFlag("logger.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("database.path", flags.Lookup("db"))

	rootCmd.AddCommand(
		newImportCommand(),
		newCheckCommand(),
		newTestCommand(),
		newStatsCommand(),
		newReportCommand(),
		newExportCommand(),
		newTemplateCommand(),
		newServeCommand(),
	)
}
