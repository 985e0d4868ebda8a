package classifier

import "fmt"

// Shared sub-patterns. Every built-in format reports durations and statements
// the same way; only the entry header differs.
const (
	DurationPattern  = `duration: ([0-9.]+) ms`
	StatementPattern = `(?:execute[^:]*|statement): (.*)`
	datePrefix       = `^\d{4}-\d{2}-\d{2} `
)

// DefaultFormatName is the format used when none is configured.
const DefaultFormatName = "default"

// Format is the pattern table describing one log producer variant.
//
// EntryStart identifies the first physical line of a log entry. PID must
// capture the process id in its first group, Duration the duration numeral and
// Statement the statement text.
type Format struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	EntryStart  string   `yaml:"entry_start" json:"entry_start"`
	PID         string   `yaml:"pid" json:"pid"`
	Duration    string   `yaml:"duration" json:"duration"`
	Statement   string   `yaml:"statement" json:"statement"`
	Examples    []string `yaml:"-" json:"examples,omitempty"`
}

// BuiltinFormats returns the known log_line_prefix variants, most common first.
func BuiltinFormats() []Format {
	return []Format{
		{
			Name:        DefaultFormatName,
			Description: "date-prefixed stderr log with NN(pid): or [n](pid): session marker",
			EntryStart:  datePrefix,
			PID:         `(?:\d{2,3}|\[\d+\])\((\d+)\):`,
			Duration:    DurationPattern,
			Statement:   StatementPattern,
			Examples: []string{
				"2024-01-01 10:00:00 UTC [1](23): statement: SELECT 1",
				"2015-06-01 10:00:00 CEST 123(4567): LOG:  duration: 0.412 ms",
			},
		},
		{
			Name:        "pid-brackets",
			Description: "log_line_prefix = '%t [%p]: ' or '%t [%p-%l] '",
			EntryStart:  datePrefix,
			PID:         `\[(\d+)(?:-\d+)?\]:? `,
			Duration:    DurationPattern,
			Statement:   StatementPattern,
			Examples: []string{
				"2024-01-01 10:00:00 UTC [4242]: LOG:  statement: SELECT 1",
				"2024-01-01 10:00:00.120 UTC [4242-3] LOG:  duration: 1.020 ms",
			},
		},
		{
			Name:        "rds",
			Description: "Amazon RDS log_line_prefix '%t:%r:%u@%d:[%p]:'",
			EntryStart:  datePrefix,
			PID:         `:\[(\d+)\]:`,
			Duration:    DurationPattern,
			Statement:   StatementPattern,
			Examples: []string{
				"2024-01-01 10:00:00 UTC:10.0.0.5(50312):app@orders:[4242]:LOG:  statement: SELECT 1",
			},
		},
	}
}

// LookupFormat returns the built-in format with the given name.
func LookupFormat(name string) (Format, error) {
	if name == "" {
		name = DefaultFormatName
	}
	for _, f := range BuiltinFormats() {
		if f.Name == name {
			return f, nil
		}
	}
	return Format{}, fmt.Errorf("unknown format %q (available: %v)", name, FormatNames())
}

// FormatNames lists the names of the built-in formats.
func FormatNames() []string {
	formats := BuiltinFormats()
	names := make([]string, 0, len(formats))
	for _, f := range formats {
		names = append(names, f.Name)
	}
	return names
}
