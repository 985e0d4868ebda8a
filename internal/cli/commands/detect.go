package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/pgcrunch/pkg/detector"
)

// DetectOptions holds command-line options for the detect command.
type DetectOptions struct {
	Output      string
	SampleSize  int
	ShowAll     bool
	WriteConfig string
}

// NewDetectCommand creates the detect command.
func NewDetectCommand() *cobra.Command {
	opts := &DetectOptions{}

	cmd := &cobra.Command{
		Use:   "detect <log-file>",
		Short: "Detect the log line prefix format of a PostgreSQL log",
		Long: `Sample a PostgreSQL log and work out which built-in log_line_prefix
format it uses.

Every line that starts a log entry is checked for a backend process id under
each format. The format that extracts a pid from the largest share of entry
lines wins. Reports the statement and duration lines seen and a ready-to-use
YAML configuration snippet.

Optionally generates a starter config file with --write-config.

Example:
  pgcrunch detect /var/log/postgresql/postgresql-16-main.log
  pgcrunch detect --sample 1000 --all postgresql.log
  pgcrunch detect -w pgcrunch.yaml /var/log/postgresql/postgresql.log`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().IntVarP(&opts.SampleSize, "sample", "n", 200, "Number of lines to sample")
	cmd.Flags().BoolVar(&opts.ShowAll, "all", false, "Show all detected formats, not just the best match")
	cmd.Flags().StringVarP(&opts.WriteConfig, "write-config", "w", "", "Write starter config to file (will not overwrite)")

	return cmd
}

func runDetect(cmd *cobra.Command, args []string, opts *DetectOptions) error {
	logFile := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	w := cmd.OutOrStdout()

	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		return fmt.Errorf("log file not found: %s", logFile)
	}

	d := detector.New(detector.WithSampleSize(opts.SampleSize))

	result, err := d.DetectFromFile(ctx, logFile)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}

	if opts.WriteConfig != "" {
		if err := writeStarterConfig(w, result, logFile, opts.WriteConfig); err != nil {
			return err
		}
	}

	switch opts.Output {
	case "json":
		return outputDetectJSON(w, result, logFile, opts)
	case "text":
		return outputDetectText(w, result, logFile, opts)
	default:
		return fmt.Errorf("unknown output format %q (use text or json)", opts.Output)
	}
}

func outputDetectText(w io.Writer, result *detector.DetectionResult, logFile string, opts *DetectOptions) error {
	fmt.Fprintln(w, "=== Log Format Detection ===")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "File: %s\n", logFile)
	fmt.Fprintf(w, "Lines sampled: %d\n", result.SampledLines)
	fmt.Fprintf(w, "Entry lines with a pid: %d\n", result.EntryLines)
	fmt.Fprintln(w)

	if !result.HasMatch() {
		fmt.Fprintln(w, "No known format detected.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Tip: Check log_line_prefix in postgresql.conf and set")
		fmt.Fprintln(w, "patterns.pid in the config to a regex capturing the process id.")
		return nil
	}

	best := result.BestMatch()
	fmt.Fprintf(w, "Detected Format: %s\n", best.Format.Name)
	if best.Format.Description != "" {
		fmt.Fprintf(w, "  %s\n", best.Format.Description)
	}
	fmt.Fprintf(w, "Confidence: %.1f%% (%d/%d entry lines matched)\n",
		best.Confidence*100, best.MatchCount, best.EntryCount)
	fmt.Fprintf(w, "Statements: %d  Durations: %d\n", best.Statements, best.Durations)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Sample match:\n  %s\n", best.SampleLine)
	fmt.Fprintln(w)

	if best.Durations == 0 {
		fmt.Fprintln(w, "WARNING: No duration lines found in the sample.")
		fmt.Fprintln(w, "Set log_min_duration_statement or log_duration so durations are logged.")
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "--- Configuration snippet (copy to your config file) ---")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "format: %s\n", best.Format.Name)
	fmt.Fprintln(w)

	if opts.ShowAll && len(result.Matches) > 1 {
		fmt.Fprintln(w, "--- Alternative formats detected ---")
		for i, m := range result.Matches[1:] {
			fmt.Fprintf(w, "%d. %s (%.1f%% confidence)\n", i+2, m.Format.Name, m.Confidence*100)
			fmt.Fprintf(w, "   pid: '%s'\n", m.Format.PID)
		}
		fmt.Fprintln(w)
	}

	return nil
}

// JSONMatch represents a format match in JSON output.
type JSONMatch struct {
	Name       string  `json:"name"`
	EntryStart string  `json:"entry_start"`
	PID        string  `json:"pid"`
	Confidence float64 `json:"confidence"`
	MatchCount int     `json:"match_count"`
	EntryCount int     `json:"entry_count"`
	Statements int     `json:"statements"`
	Durations  int     `json:"durations"`
	SampleLine string  `json:"sample_line"`
}

// JSONOutput represents the full JSON output.
type JSONOutput struct {
	File         string      `json:"file"`
	Matches      []JSONMatch `json:"matches"`
	SampledLines int         `json:"sampled_lines"`
	EntryLines   int         `json:"entry_lines"`
}

func outputDetectJSON(w io.Writer, result *detector.DetectionResult, logFile string, opts *DetectOptions) error {
	out := JSONOutput{
		File:         logFile,
		SampledLines: result.SampledLines,
		EntryLines:   result.EntryLines,
		Matches:      make([]JSONMatch, 0),
	}

	matches := result.Matches
	if !opts.ShowAll && len(matches) > 1 {
		matches = matches[:1]
	}

	for _, m := range matches {
		out.Matches = append(out.Matches, JSONMatch{
			Name:       m.Format.Name,
			EntryStart: m.Format.EntryStart,
			PID:        m.Format.PID,
			Confidence: m.Confidence,
			MatchCount: m.MatchCount,
			EntryCount: m.EntryCount,
			Statements: m.Statements,
			Durations:  m.Durations,
			SampleLine: m.SampleLine,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// writeStarterConfig generates a starter config file with the detected format.
func writeStarterConfig(w io.Writer, result *detector.DetectionResult, logFile, configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s (will not overwrite)", configPath)
	}

	if !result.HasMatch() {
		return fmt.Errorf("cannot generate config: no log format detected")
	}

	content := generateStarterConfig(logFile, result.BestMatch())

	// #nosec G306 - config file doesn't need restrictive permissions
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(w, "Wrote starter config to: %s\n\n", configPath)
	return nil
}

// generateStarterConfig creates a YAML config template.
func generateStarterConfig(logFile string, match *detector.FormatMatch) string {
	absLogFile := logFile
	if abs, err := filepath.Abs(logFile); err == nil {
		absLogFile = abs
	}

	return fmt.Sprintf(`# pgcrunch configuration
# Generated by: pgcrunch detect
# Detected format: %s (%.0f%% confidence)

log_sources:
  - %s
  # Add more log files or use globs:
  # - /var/log/postgresql/*.log

format: %s

# Override individual patterns if your log_line_prefix differs.
# Each pattern except entry_start needs one capture group.
# patterns:
#   entry_start: '%s'
#   pid: '%s'
#   duration: '%s'
#   statement: '%s'

encoding: utf-8

# Write CSV here instead of stdout:
# output: /tmp/durations.csv

# Keep reading the log as it grows (one log source only):
# follow: true
# from_start: false

# Serve Prometheus metrics while scanning:
# metrics_addr: ":9187"

log_level: info
`, match.Format.Name, match.Confidence*100,
		absLogFile,
		match.Format.Name,
		match.Format.EntryStart,
		match.Format.PID,
		match.Format.Duration,
		match.Format.Statement)
}
