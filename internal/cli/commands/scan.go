package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/pgcrunch/internal/logging"
	"github.com/ccollicutt/pgcrunch/pkg/config"
	"github.com/ccollicutt/pgcrunch/pkg/metrics"
	"github.com/ccollicutt/pgcrunch/pkg/output"
	"github.com/ccollicutt/pgcrunch/pkg/parser"
	"github.com/ccollicutt/pgcrunch/pkg/scanner"
)

// ScanOptions holds command-line options for the scan command.
type ScanOptions struct {
	Config      string
	Format      string
	Output      string
	Follow      bool
	FromStart   bool
	Encoding    string
	MetricsAddr string
	LogLevel    string
	LogFormat   string
}

// NewScanCommand creates the scan command.
func NewScanCommand() *cobra.Command {
	opts := &ScanOptions{}

	cmd := &cobra.Command{
		Use:   "scan [log-file...]",
		Short: "Pair statements with their durations",
		Long: `Read PostgreSQL server logs and write one CSV row per statement whose
duration was reported later in the log:

  pid,duration,fingerprint,statement

Multi-line statements are reassembled and whitespace-normalized. The
fingerprint is a 64-bit hash of the statement text, so identical statements
can be grouped downstream.

With no log files (or "-") the log is read from standard input. Diagnostics
go to stderr; the CSV goes to stdout unless --output is given.

Exit codes:
  0 - Scan completed
  2 - Configuration, input or output error

Example:
  pgcrunch scan /var/log/postgresql/postgresql-16-main.log
  pgcrunch scan -o durations.csv '/var/log/postgresql/*.log'
  pgcrunch scan --follow --metrics-addr :9187 /var/log/postgresql/current.log
  zcat postgresql.log.gz | pgcrunch scan --encoding latin1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "Configuration file")
	cmd.Flags().StringVar(&opts.Format, "format", "", "Log line prefix format (default, pid-brackets, rds)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Write CSV to file instead of stdout")
	cmd.Flags().BoolVarP(&opts.Follow, "follow", "f", false, "Keep reading the log file as it grows")
	cmd.Flags().BoolVar(&opts.FromStart, "from-start", false, "With --follow, read existing content first")
	cmd.Flags().StringVar(&opts.Encoding, "encoding", "", "Input encoding (utf-8, latin1, windows-1252)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9187)")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "Diagnostic log level (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.LogFormat, "log-format", "", "Diagnostic log format (text|json)")

	return cmd
}

func runScan(cmd *cobra.Command, args []string, opts *ScanOptions) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadScanConfig(ctx, cmd, args, opts)
	if err != nil {
		return err
	}

	logger := logging.Init(cmd.ErrOrStderr(), cfg.LogFormat, logging.ParseLevel(cfg.LogLevel))

	source, err := openSource(cmd, cfg)
	if err != nil {
		return err
	}
	defer source.Close()

	out, closeOut, err := openOutput(cmd, cfg.Output)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeOut(); cerr != nil && err == nil {
			err = fmt.Errorf("closing output file: %w", cerr)
		}
	}()

	engine := scanner.New(cfg.Classifier(), output.NewCSVWriter(out), scanner.WithLogger(logger))

	if cfg.MetricsAddr != "" {
		wait, err := serveMetrics(ctx, cfg.MetricsAddr, engine, logger)
		if err != nil {
			return err
		}
		defer wait()
	}

	logger.Debug("starting scan",
		"format", cfg.Classifier().Format().Name,
		"sources", cfg.LogSources,
		"follow", cfg.Follow,
	)

	stats, err := engine.Run(ctx, source)
	if err != nil && !isInterrupt(err) {
		return fmt.Errorf("scan failed: %w", err)
	}

	logger.Info("scan complete", "stats", stats)
	return nil
}

// loadScanConfig builds the effective configuration: file (or defaults), then
// environment, then positional arguments and flags.
func loadScanConfig(ctx context.Context, cmd *cobra.Command, args []string, opts *ScanOptions) (*config.Config, error) {
	var cfg *config.Config
	if opts.Config != "" {
		loaded, err := config.Load(ctx, opts.Config)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	} else {
		cfg = config.DefaultConfig()
		cfg.ApplyEnvironmentOverrides()
	}

	if len(args) > 0 {
		cfg.LogSources = args
	}

	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Format = opts.Format
	}
	if flags.Changed("output") {
		cfg.Output = opts.Output
	}
	if flags.Changed("follow") {
		cfg.Follow = opts.Follow
	}
	if flags.Changed("from-start") {
		cfg.FromStart = opts.FromStart
	}
	if flags.Changed("encoding") {
		cfg.Encoding = opts.Encoding
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = opts.MetricsAddr
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.LogLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = opts.LogFormat
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openSource creates the line source described by cfg.
func openSource(cmd *cobra.Command, cfg *config.Config) (parser.LogSource, error) {
	enc := parser.WithEncoding(cfg.InputEncoding())

	if cfg.ReadsStdin() {
		return parser.NewFileSource([]string{parser.StdinPath}, enc, parser.WithStdin(cmd.InOrStdin())), nil
	}

	files, err := parser.ExpandGlobs(cfg.LogSources)
	if err != nil {
		return nil, fmt.Errorf("expanding log sources: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no log files matched patterns: %v", cfg.LogSources)
	}

	if cfg.Follow {
		if len(files) != 1 {
			return nil, fmt.Errorf("follow: %q matched %d files, need exactly one", cfg.LogSources[0], len(files))
		}
		src, err := parser.NewFollowSource(files[0], enc, parser.WithFromStart(cfg.FromStart))
		if err != nil {
			return nil, fmt.Errorf("following %s: %w", files[0], err)
		}
		return src, nil
	}

	return parser.NewFileSource(files, enc, parser.WithStdin(cmd.InOrStdin())), nil
}

// createOutput opens the --output file.
var createOutput = func(path string) (io.WriteCloser, error) {
	// #nosec G304 - path is provided by user via CLI
	return os.Create(path)
}

// openOutput returns the CSV destination and a function that closes it. A
// close error means rows may not have reached the file.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := createOutput(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f.Close, nil
}

// serveMetrics starts the metrics endpoint. The returned function stops it and
// waits for shutdown.
func serveMetrics(ctx context.Context, addr string, engine *scanner.Engine, logger *slog.Logger) (func(), error) {
	srv, err := metrics.Listen(addr, metrics.NewProvider(engine), logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ctx); err != nil {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()

	return func() {
		cancel()
		<-done
	}, nil
}

func isInterrupt(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
