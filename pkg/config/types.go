// Package config provides configuration loading and validation for pgcrunch.
package config

import (
	"github.com/ccollicutt/pgcrunch/pkg/classifier"
	"github.com/ccollicutt/pgcrunch/pkg/parser"
)

// Config is the root configuration structure loaded from YAML.
type Config struct {
	// LogSources lists files or glob patterns to scan. Empty means stdin.
	LogSources []string `yaml:"log_sources"`

	// Format names the built-in log_line_prefix variant.
	Format string `yaml:"format"`

	// Patterns overrides individual patterns of the selected format.
	Patterns PatternConfig `yaml:"patterns,omitempty"`

	// Encoding is the character encoding of the log files.
	Encoding string `yaml:"encoding"`

	// Output is the CSV output path. Empty means stdout.
	Output string `yaml:"output,omitempty"`

	// Follow keeps reading the (single) log source as it grows.
	Follow bool `yaml:"follow,omitempty"`

	// FromStart makes follow mode read the existing content first.
	FromStart bool `yaml:"from_start,omitempty"`

	// MetricsAddr enables the Prometheus endpoint, e.g. ":9187".
	MetricsAddr string `yaml:"metrics_addr,omitempty"`

	// LogLevel is the diagnostic log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level,omitempty"`

	// LogFormat selects the diagnostic log handler (text, json).
	LogFormat string `yaml:"log_format,omitempty"`

	// Populated during validation.
	classifier *classifier.Classifier
	encoding   parser.Encoding
}

// PatternConfig holds optional per-pattern overrides. Empty fields keep the
// selected format's pattern.
type PatternConfig struct {
	EntryStart string `yaml:"entry_start,omitempty"`
	PID        string `yaml:"pid,omitempty"`
	Duration   string `yaml:"duration,omitempty"`
	Statement  string `yaml:"statement,omitempty"`
}

// IsZero reports whether no pattern is overridden.
func (p PatternConfig) IsZero() bool {
	return p == PatternConfig{}
}

// Classifier returns the compiled classifier (populated during validation).
func (c *Config) Classifier() *classifier.Classifier {
	return c.classifier
}

// InputEncoding returns the parsed input encoding (populated during validation).
func (c *Config) InputEncoding() parser.Encoding {
	return c.encoding
}

// ReadsStdin reports whether the scan reads standard input.
func (c *Config) ReadsStdin() bool {
	return len(c.LogSources) == 0 ||
		(len(c.LogSources) == 1 && c.LogSources[0] == parser.StdinPath)
}
