// Package parser provides the line sources a scan reads from: plain files,
// standard input and followed (tailed) files.
package parser

import (
	"errors"
	"fmt"
	"strings"
)

// StdinPath is the source name that selects standard input.
const StdinPath = "-"

// LogLine is a raw log line.
type LogLine struct {
	// Content is the line text without its line terminator.
	Content string

	// Source is the file path this line came from.
	Source string

	// LineNum is the 1-based line number in the source file.
	LineNum int
}

// ErrInvalidUTF8 is reported for a line whose bytes are not valid UTF-8.
var ErrInvalidUTF8 = errors.New("line is not valid UTF-8")

// ReadError reports a problem reading one line or file. The source stays
// usable: the next call to Next continues with the following line or file.
type ReadError struct {
	Source string
	Line   int
	Err    error
}

func (e *ReadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("reading %s:%d: %v", e.Source, e.Line, e.Err)
	}
	return fmt.Sprintf("reading %s: %v", e.Source, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// IsReadError reports whether err is a recoverable ReadError.
func IsReadError(err error) bool {
	var re *ReadError
	return errors.As(err, &re)
}

// trimEOL strips a trailing "\n" or "\r\n".
func trimEOL(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}
