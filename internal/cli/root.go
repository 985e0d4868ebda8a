// Package cli provides the command-line interface for pgcrunch.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/pgcrunch/internal/cli/commands"
)

// Execute runs the root command with os.Args and returns the exit code.
func Execute() int {
	return run(NewRootCommand(), os.Args[1:], os.Stderr)
}

func run(rootCmd *cobra.Command, args []string, stderr io.Writer) int {
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		// SilenceErrors stops cobra from printing this itself
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pgcrunch",
		Short: "Pair PostgreSQL statements with their logged durations",
		Long: `pgcrunch reads PostgreSQL server logs and pairs every statement with the
duration its backend reports for it later in the log.

Statements spanning several lines are reassembled. Each pairing becomes one
CSV row (pid, duration, fingerprint, statement) ready for sorting, grouping
or loading into a spreadsheet.

Start with "pgcrunch detect" to find out which log_line_prefix format your
logs use, then "pgcrunch scan" them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewScanCommand())
	rootCmd.AddCommand(commands.NewDetectCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	return rootCmd
}
