package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/pgcrunch/pkg/config"
	"github.com/ccollicutt/pgcrunch/pkg/parser"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file",
		Long: `Validate a pgcrunch configuration file without scanning.

Checks:
  - YAML syntax
  - Format name and encoding
  - Regex pattern validity and capture groups
  - Follow mode has exactly one log source
  - Metrics address syntax
  - Log source file existence (warning only)`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Validating %s...\n", configPath)

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	format := cfg.Classifier().Format()
	fmt.Fprintf(w, "\nConfiguration valid!\n")
	fmt.Fprintf(w, "  Format:      %s\n", format.Name)
	fmt.Fprintf(w, "  Encoding:    %s\n", cfg.InputEncoding())
	fmt.Fprintf(w, "  Log sources: %d pattern(s)\n", len(cfg.LogSources))
	if cfg.Follow {
		fmt.Fprintf(w, "  Follow:      yes (from start: %t)\n", cfg.FromStart)
	}
	if cfg.MetricsAddr != "" {
		fmt.Fprintf(w, "  Metrics:     %s\n", cfg.MetricsAddr)
	}

	fmt.Fprintf(w, "\nPatterns:\n")
	fmt.Fprintf(w, "  entry_start: %s\n", format.EntryStart)
	fmt.Fprintf(w, "  pid:         %s\n", format.PID)
	fmt.Fprintf(w, "  duration:    %s\n", format.Duration)
	fmt.Fprintf(w, "  statement:   %s\n", format.Statement)

	if cfg.ReadsStdin() {
		fmt.Fprintf(w, "\nLog source: standard input\n")
		return nil
	}

	// Missing log files are warnings only
	files, err := parser.ExpandGlobs(cfg.LogSources)
	if err != nil {
		fmt.Fprintf(w, "\nWarning: Error expanding log source patterns: %v\n", err)
		return nil
	}

	var found []string
	for _, f := range files {
		if fileExists(f) {
			found = append(found, f)
		}
	}
	if len(found) == 0 {
		fmt.Fprintf(w, "\nWarning: No files match log source patterns\n")
		return nil
	}

	fmt.Fprintf(w, "\nLog files matched: %d\n", len(found))
	for _, f := range found {
		fmt.Fprintf(w, "  - %s\n", f)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
