// Package classifier decides what a single PostgreSQL log line means.
//
// A line is either the start of a new log entry or a continuation of the
// previous one. Entry starts carrying a backend process id are further split
// into duration reports and statement starts.
package classifier

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// Kind is the classification of a single line.
type Kind int

const (
	// Continuation is a line that does not start a new log entry.
	Continuation Kind = iota
	// Ignore is an entry start that is neither a duration nor a statement.
	Ignore
	// Duration is an entry reporting how long a statement took.
	Duration
	// QueryStart is an entry carrying the first line of a statement.
	QueryStart
)

func (k Kind) String() string {
	switch k {
	case Continuation:
		return "continuation"
	case Ignore:
		return "ignore"
	case Duration:
		return "duration"
	case QueryStart:
		return "query_start"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the result of classifying one line.
//
// PID is set for Duration and QueryStart. Text holds the literal duration
// numeral for Duration and the normalized statement fragment for QueryStart.
type Outcome struct {
	Kind Kind
	PID  int
	Text string
}

// EntryStart reports whether the classified line began a new log entry.
func (o Outcome) EntryStart() bool {
	return o.Kind != Continuation
}

// RE2's \s is ASCII only; \v, NEL and the Unicode separators are added so
// every White_Space rune counts.
var whitespace = regexp.MustCompile(`[\s\v\p{Z}\x{85}]+`)

// Normalize collapses every run of Unicode whitespace to a single space.
func Normalize(s string) string {
	return whitespace.ReplaceAllString(s, " ")
}

// Classifier applies a compiled Format to log lines. It is immutable and safe
// for concurrent use.
type Classifier struct {
	format     Format
	entryStart *regexp.Regexp
	pid        *regexp.Regexp
	duration   *regexp.Regexp
	statement  *regexp.Regexp
}

// New compiles the patterns of f.
func New(f Format) (*Classifier, error) {
	c := &Classifier{format: f}

	var err error
	if c.entryStart, err = compile("entry_start", f.EntryStart, 0); err != nil {
		return nil, err
	}
	if c.pid, err = compile("pid", f.PID, 1); err != nil {
		return nil, err
	}
	if c.duration, err = compile("duration", f.Duration, 1); err != nil {
		return nil, err
	}
	if c.statement, err = compile("statement", f.Statement, 1); err != nil {
		return nil, err
	}
	return c, nil
}

// MustNew is like New but panics if a pattern does not compile.
func MustNew(f Format) *Classifier {
	c, err := New(f)
	if err != nil {
		panic(err)
	}
	return c
}

// Default returns a classifier for the default built-in format.
func Default() *Classifier {
	f, _ := LookupFormat(DefaultFormatName)
	return MustNew(f)
}

func compile(name, pattern string, groups int) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%s: pattern is required", name)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid pattern: %w", name, err)
	}
	if re.NumSubexp() < groups {
		return nil, fmt.Errorf("%s: %w", name, errMissingGroup)
	}
	return re, nil
}

var errMissingGroup = errors.New("pattern must have at least one capture group")

// Format returns the pattern table this classifier was built from.
func (c *Classifier) Format() Format {
	return c.format
}

// IsEntryStart reports whether line begins a new log entry.
func (c *Classifier) IsEntryStart(line string) bool {
	return c.entryStart.MatchString(line)
}

// PID extracts the process id from an entry header.
func (c *Classifier) PID(line string) (int, bool) {
	m := c.pid.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	pid, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return pid, true
}

// Classify determines what line means. It never fails: anything unexpected
// is Ignore or Continuation.
func (c *Classifier) Classify(line string) Outcome {
	if !c.IsEntryStart(line) {
		return Outcome{Kind: Continuation}
	}

	pid, ok := c.PID(line)
	if !ok {
		return Outcome{Kind: Ignore}
	}

	if m := c.duration.FindStringSubmatch(line); m != nil {
		return Outcome{Kind: Duration, PID: pid, Text: m[1]}
	}
	if m := c.statement.FindStringSubmatch(line); m != nil {
		return Outcome{Kind: QueryStart, PID: pid, Text: Normalize(m[1])}
	}
	return Outcome{Kind: Ignore}
}
