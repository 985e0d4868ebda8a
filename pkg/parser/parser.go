package parser

import (
	"bufio"
	"context"
	"io"
	"os"
	"unicode/utf8"
)

// FileSource implements LogSource for reading log files in order.
// The path "-" reads standard input.
type FileSource struct {
	files    []string
	encoding Encoding
	stdin    io.Reader

	currentFile   io.Closer
	currentReader *bufio.Reader
	currentSource string
	currentLine   int
	fileIndex     int
}

// SourceOption configures a FileSource or FollowSource.
type SourceOption func(*sourceOptions)

type sourceOptions struct {
	encoding  Encoding
	stdin     io.Reader
	fromStart bool
}

// WithEncoding decodes input from the given encoding.
func WithEncoding(e Encoding) SourceOption {
	return func(o *sourceOptions) { o.encoding = e }
}

// WithStdin replaces os.Stdin as the reader behind the "-" path.
func WithStdin(r io.Reader) SourceOption {
	return func(o *sourceOptions) { o.stdin = r }
}

// WithFromStart makes a FollowSource read the existing content of the file
// before waiting for new lines.
func WithFromStart(v bool) SourceOption {
	return func(o *sourceOptions) { o.fromStart = v }
}

func applyOptions(opts []SourceOption) sourceOptions {
	o := sourceOptions{encoding: EncodingUTF8, stdin: os.Stdin}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewFileSource creates a LogSource that reads from the given files.
func NewFileSource(files []string, opts ...SourceOption) *FileSource {
	o := applyOptions(opts)
	return &FileSource{
		files:     files,
		encoding:  o.encoding,
		stdin:     o.stdin,
		fileIndex: -1,
	}
}

// Next returns the next log line.
// Returns io.EOF when all files have been exhausted.
func (s *FileSource) Next(ctx context.Context) (*LogLine, error) {
	for {
		// Check for context cancellation
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		// Ensure we have a file open
		if s.currentReader == nil {
			if err := s.openNextFile(); err != nil {
				return nil, err
			}
		}

		text, err := s.currentReader.ReadString('\n')
		if text != "" && (err == nil || err == io.EOF) {
			s.currentLine++
			text = trimEOL(text)
			if s.encoding.validates() && !utf8.ValidString(text) {
				return nil, &ReadError{Source: s.currentSource, Line: s.currentLine, Err: ErrInvalidUTF8}
			}
			return &LogLine{
				Content: text,
				Source:  s.currentSource,
				LineNum: s.currentLine,
			}, nil
		}

		if err != nil && err != io.EOF {
			// The rest of this file is lost; carry on with the next one.
			rerr := &ReadError{Source: s.currentSource, Line: s.currentLine + 1, Err: err}
			_ = s.closeCurrentFile()
			return nil, rerr
		}

		// Current file exhausted, try next
		if err := s.closeCurrentFile(); err != nil {
			return nil, &ReadError{Source: s.currentSource, Err: err}
		}
	}
}

// Close releases resources.
func (s *FileSource) Close() error {
	return s.closeCurrentFile()
}

func (s *FileSource) openNextFile() error {
	s.fileIndex++
	if s.fileIndex >= len(s.files) {
		return io.EOF
	}

	path := s.files[s.fileIndex]
	s.currentSource = path
	s.currentLine = 0

	var r io.Reader
	if path == StdinPath {
		r = s.stdin
	} else {
		f, err := os.Open(path) // #nosec G304 -- user-provided paths are expected
		if err != nil {
			return &ReadError{Source: path, Err: err}
		}
		s.currentFile = f
		r = f
	}

	s.currentReader = bufio.NewReaderSize(s.encoding.Reader(r), 64*1024)
	return nil
}

func (s *FileSource) closeCurrentFile() error {
	s.currentReader = nil
	if s.currentFile != nil {
		err := s.currentFile.Close()
		s.currentFile = nil
		return err
	}
	return nil
}
