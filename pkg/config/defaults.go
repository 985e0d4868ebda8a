package config

import (
	"os"

	"github.com/ccollicutt/pgcrunch/pkg/classifier"
	"github.com/ccollicutt/pgcrunch/pkg/parser"
)

// Default values for configuration.
const (
	DefaultFormat    = classifier.DefaultFormatName
	DefaultEncoding  = string(parser.EncodingUTF8)
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Environment variable names.
const (
	EnvFormat      = "PGCRUNCH_FORMAT"
	EnvLogLevel    = "PGCRUNCH_LOG_LEVEL"
	EnvMetricsAddr = "PGCRUNCH_METRICS_ADDR"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogSources: []string{},
		Format:     DefaultFormat,
		Encoding:   DefaultEncoding,
		LogLevel:   DefaultLogLevel,
		LogFormat:  DefaultLogFormat,
	}
}

// ApplyEnvironmentOverrides applies environment variable overrides to the config.
func (c *Config) ApplyEnvironmentOverrides() {
	if format := os.Getenv(EnvFormat); format != "" {
		c.Format = format
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.LogLevel = level
	}
	if addr := os.Getenv(EnvMetricsAddr); addr != "" {
		c.MetricsAddr = addr
	}
}
