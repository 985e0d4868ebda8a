package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ccollicutt/pgcrunch/pkg/classifier"
	"github.com/ccollicutt/pgcrunch/pkg/parser"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
log_sources:
  - /var/log/postgresql/*.log
format: pid-brackets
encoding: latin1
output: /tmp/durations.csv
metrics_addr: ":9187"
log_level: debug
`
	path := writeTempFile(t, "config.yaml", content)
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.LogSources) != 1 {
		t.Errorf("LogSources = %d, want 1", len(cfg.LogSources))
	}
	if cfg.Classifier() == nil {
		t.Fatal("Classifier() is nil after Load")
	}
	if cfg.Classifier().Format().Name != "pid-brackets" {
		t.Errorf("Format = %q, want pid-brackets", cfg.Classifier().Format().Name)
	}
	if cfg.InputEncoding() != parser.EncodingLatin1 {
		t.Errorf("InputEncoding() = %q, want latin1", cfg.InputEncoding())
	}
	if cfg.MetricsAddr != ":9187" {
		t.Errorf("MetricsAddr = %q", cfg.MetricsAddr)
	}
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	path := writeTempFile(t, "empty.yaml", "")
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Format != DefaultFormat {
		t.Errorf("Format = %q, want %q", cfg.Format, DefaultFormat)
	}
	if !cfg.ReadsStdin() {
		t.Error("ReadsStdin() = false, want true with no log sources")
	}
	if cfg.InputEncoding() != parser.EncodingUTF8 {
		t.Errorf("InputEncoding() = %q, want utf-8", cfg.InputEncoding())
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(context.Background(), "/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTempFile(t, "invalid.yaml", `invalid: yaml: content: [`)
	_, err := Load(context.Background(), path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML")
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvFormat, "rds")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvMetricsAddr, "127.0.0.1:9999")

	path := writeTempFile(t, "config.yaml", "format: default\n")
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Format != "rds" {
		t.Errorf("Format = %q, want rds", cfg.Format)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if cfg.MetricsAddr != "127.0.0.1:9999" {
		t.Errorf("MetricsAddr = %q", cfg.MetricsAddr)
	}
}

func TestLoad_PatternOverrides(t *testing.T) {
	content := `
patterns:
  pid: '\[(\d+)\]'
`
	path := writeTempFile(t, "config.yaml", content)
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	f := cfg.Classifier().Format()
	if f.PID != `\[(\d+)\]` {
		t.Errorf("PID pattern = %q, want override", f.PID)
	}
	if f.Duration != classifier.DurationPattern {
		t.Errorf("Duration pattern = %q, want default kept", f.Duration)
	}
	if !strings.Contains(f.Name, "custom") {
		t.Errorf("Name = %q, want custom marker", f.Name)
	}

	got := cfg.Classifier().Classify("2024-01-01 10:00:00 UTC [77] LOG:  duration: 1.5 ms")
	if got.Kind != classifier.Duration || got.PID != 77 {
		t.Errorf("Classify() = %+v, want duration for pid 77", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown format", func(c *Config) { c.Format = "syslog" }, "format"},
		{"invalid pattern", func(c *Config) { c.Patterns.EntryStart = "[" }, "patterns"},
		{"pid without capture group", func(c *Config) { c.Patterns.PID = `\d+` }, "patterns"},
		{"bad encoding", func(c *Config) { c.Encoding = "utf-16" }, "encoding"},
		{"follow without source", func(c *Config) { c.Follow = true }, "follow"},
		{"follow stdin", func(c *Config) {
			c.Follow = true
			c.LogSources = []string{"-"}
		}, "follow"},
		{"follow two sources", func(c *Config) {
			c.Follow = true
			c.LogSources = []string{"a.log", "b.log"}
		}, "follow"},
		{"follow one source", func(c *Config) {
			c.Follow = true
			c.LogSources = []string{"a.log"}
		}, ""},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"metrics addr without port", func(c *Config) { c.MetricsAddr = "localhost" }, "metrics_addr"},
		{"metrics addr", func(c *Config) { c.MetricsAddr = ":9187" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.HasPrefix(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want prefix %q", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Format != DefaultFormat {
		t.Errorf("Format = %q, want %q", cfg.Format, DefaultFormat)
	}
	if cfg.Encoding != DefaultEncoding {
		t.Errorf("Encoding = %q, want %q", cfg.Encoding, DefaultEncoding)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, DefaultLogLevel)
	}
	if cfg.Classifier() != nil {
		t.Error("Classifier() should be nil before validation")
	}
}

func TestReadsStdin(t *testing.T) {
	tests := []struct {
		sources []string
		want    bool
	}{
		{nil, true},
		{[]string{"-"}, true},
		{[]string{"a.log"}, false},
		{[]string{"-", "a.log"}, false},
	}
	for _, tt := range tests {
		cfg := &Config{LogSources: tt.sources}
		if got := cfg.ReadsStdin(); got != tt.want {
			t.Errorf("ReadsStdin(%v) = %v, want %v", tt.sources, got, tt.want)
		}
	}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	return path
}
