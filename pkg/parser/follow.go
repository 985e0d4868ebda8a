package parser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/fsnotify/fsnotify"
)

// FollowSource implements LogSource for a single file that keeps growing,
// like tail -f. Next blocks until a complete line is available or the context
// is cancelled. The file may be rotated (removed or renamed, then recreated)
// or truncated; reading restarts at the beginning of the new content.
type FollowSource struct {
	path     string
	encoding Encoding
	watcher  *fsnotify.Watcher

	file    *os.File
	reader  *bufio.Reader
	partial string
	lineNum int
}

// NewFollowSource opens path for following. Unless WithFromStart(true) is
// given, only lines appended after this call are returned.
func NewFollowSource(path string, opts ...SourceOption) (*FollowSource, error) {
	o := applyOptions(opts)

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	f, err := os.Open(abs) // #nosec G304 -- user-provided paths are expected
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", path, err)
	}
	if !o.fromStart {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			f.Close()
			return nil, fmt.Errorf("seeking to end of %s: %w", path, err)
		}
	}

	// Watch the directory so a recreated file is noticed after rotation.
	w, err := fsnotify.NewWatcher()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		f.Close()
		w.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	return &FollowSource{
		path:     abs,
		encoding: o.encoding,
		watcher:  w,
		file:     f,
	}, nil
}

// Path returns the absolute path being followed.
func (s *FollowSource) Path() string {
	return s.path
}

// Next returns the next complete line appended to the file.
func (s *FollowSource) Next(ctx context.Context) (*LogLine, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if s.file != nil {
			if s.reader == nil {
				s.reader = bufio.NewReader(s.encoding.Reader(s.file))
			}

			text, err := s.reader.ReadString('\n')
			if err == nil {
				line := trimEOL(s.partial + text)
				s.partial = ""
				s.lineNum++
				if s.encoding.validates() && !utf8.ValidString(line) {
					return nil, &ReadError{Source: s.path, Line: s.lineNum, Err: ErrInvalidUTF8}
				}
				return &LogLine{Content: line, Source: s.path, LineNum: s.lineNum}, nil
			}

			// A decoder stops for good at EOF, so the reader is rebuilt once
			// more data arrives. Everything read so far is kept in partial.
			s.partial += text
			s.reader = nil
			if err != io.EOF {
				s.closeFile()
				return nil, &ReadError{Source: s.path, Line: s.lineNum + 1, Err: err}
			}
		}

		if err := s.wait(ctx); err != nil {
			return nil, err
		}
	}
}

// wait blocks until something happens to the followed file.
func (s *FollowSource) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()

	case ev, ok := <-s.watcher.Events:
		if !ok {
			return io.EOF
		}
		if filepath.Clean(ev.Name) != s.path {
			return nil
		}
		switch {
		case ev.Op&fsnotify.Create != 0:
			return s.reopen()
		case ev.Op&fsnotify.Remove != 0, ev.Op&fsnotify.Rename != 0:
			s.closeFile()
		case ev.Op&fsnotify.Write != 0:
			return s.checkTruncated()
		}
		return nil

	case err, ok := <-s.watcher.Errors:
		if !ok {
			return io.EOF
		}
		return &ReadError{Source: s.path, Err: err}
	}
}

// reopen starts reading a recreated file from the beginning.
func (s *FollowSource) reopen() error {
	s.closeFile()
	f, err := os.Open(s.path) // #nosec G304 -- user-provided paths are expected
	if err != nil {
		return &ReadError{Source: s.path, Err: err}
	}
	s.file = f
	s.lineNum = 0
	return nil
}

// checkTruncated rewinds when the file shrank below the read position.
func (s *FollowSource) checkTruncated() error {
	if s.file == nil {
		return s.reopen()
	}
	pos, err := s.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return &ReadError{Source: s.path, Err: err}
	}
	info, err := s.file.Stat()
	if err != nil {
		return &ReadError{Source: s.path, Err: err}
	}
	if info.Size() < pos {
		if _, err := s.file.Seek(0, io.SeekStart); err != nil {
			return &ReadError{Source: s.path, Err: err}
		}
		s.partial = ""
		s.reader = nil
		s.lineNum = 0
	}
	return nil
}

func (s *FollowSource) closeFile() {
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
	s.reader = nil
	s.partial = ""
}

// Close stops watching and releases the file.
func (s *FollowSource) Close() error {
	s.closeFile()
	return s.watcher.Close()
}
