package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ccollicutt/pgcrunch/pkg/classifier"
	"github.com/ccollicutt/pgcrunch/pkg/parser"
)

// Load reads and validates a configuration file.
func Load(_ context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided config path is expected
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.ApplyEnvironmentOverrides()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks a configuration for errors and compiles the pattern table.
func Validate(cfg *Config) error {
	format, err := ResolveFormat(cfg)
	if err != nil {
		return fmt.Errorf("format: %w", err)
	}

	c, err := classifier.New(format)
	if err != nil {
		return fmt.Errorf("patterns: %w", err)
	}
	cfg.classifier = c

	enc, err := parser.ParseEncoding(cfg.Encoding)
	if err != nil {
		return fmt.Errorf("encoding: %w", err)
	}
	cfg.encoding = enc

	if cfg.Follow {
		if len(cfg.LogSources) != 1 {
			return errors.New("follow: exactly one log source is required")
		}
		if cfg.LogSources[0] == parser.StdinPath {
			return errors.New("follow: cannot follow stdin")
		}
	}

	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	switch strings.ToLower(cfg.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log_format: invalid value %q (must be text or json)", cfg.LogFormat)
	}

	if cfg.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(cfg.MetricsAddr); err != nil {
			return fmt.Errorf("metrics_addr: %w", err)
		}
	}

	return nil
}

// ResolveFormat returns the built-in format named by cfg with any pattern
// overrides applied.
func ResolveFormat(cfg *Config) (classifier.Format, error) {
	format, err := classifier.LookupFormat(cfg.Format)
	if err != nil {
		return classifier.Format{}, err
	}

	p := cfg.Patterns
	if p.IsZero() {
		return format, nil
	}

	format.Name += " (custom)"
	if p.EntryStart != "" {
		format.EntryStart = p.EntryStart
	}
	if p.PID != "" {
		format.PID = p.PID
	}
	if p.Duration != "" {
		format.Duration = p.Duration
	}
	if p.Statement != "" {
		format.Statement = p.Statement
	}
	format.Examples = nil
	return format, nil
}

func validateLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "", "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("invalid value %q (must be debug, info, warn or error)", level)
	}
}
