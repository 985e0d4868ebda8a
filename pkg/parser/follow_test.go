package parser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// appendTo runs in writer goroutines, so it reports with Errorf instead of
// failing the test from outside the test goroutine.
func appendTo(t *testing.T, path, content string) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Errorf("open %s: %v", path, err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Errorf("append %s: %v", path, err)
	}
}

func nextWithin(t *testing.T, src LogSource, d time.Duration) *LogLine {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	line, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	return line
}

func newFollowed(t *testing.T, content string, opts ...SourceOption) (*FollowSource, string) {
	t.Helper()
	logPath := writeFile(t, t.TempDir(), "postgresql.log", content)
	src, err := NewFollowSource(logPath, opts...)
	if err != nil {
		t.Fatalf("NewFollowSource() error = %v", err)
	}
	t.Cleanup(func() { src.Close() })
	return src, logPath
}

func TestFollowSource_NewLinesOnly(t *testing.T) {
	src, logPath := newFollowed(t, "existing line\n")

	go func() {
		time.Sleep(200 * time.Millisecond)
		appendTo(t, logPath, "hello from test\n")
	}()

	line := nextWithin(t, src, 3*time.Second)
	if line.Content != "hello from test" {
		t.Errorf("Content = %q, want %q", line.Content, "hello from test")
	}
	if line.Source != src.Path() {
		t.Errorf("Source = %q, want %q", line.Source, src.Path())
	}
}

func TestFollowSource_FromStart(t *testing.T) {
	src, _ := newFollowed(t, "existing line\n", WithFromStart(true))

	line := nextWithin(t, src, time.Second)
	if line.Content != "existing line" || line.LineNum != 1 {
		t.Errorf("line = %+v, want existing line at 1", line)
	}
}

func TestFollowSource_PartialLine(t *testing.T) {
	src, logPath := newFollowed(t, "")

	go func() {
		time.Sleep(100 * time.Millisecond)
		appendTo(t, logPath, "SELECT ")
		time.Sleep(200 * time.Millisecond)
		appendTo(t, logPath, "1\n")
	}()

	line := nextWithin(t, src, 3*time.Second)
	if line.Content != "SELECT 1" {
		t.Errorf("Content = %q, want %q", line.Content, "SELECT 1")
	}
}

func TestFollowSource_Rotation(t *testing.T) {
	src, logPath := newFollowed(t, "")

	go func() {
		time.Sleep(100 * time.Millisecond)
		if err := os.Rename(logPath, logPath+".1"); err != nil {
			t.Errorf("rename: %v", err)
		}
		time.Sleep(100 * time.Millisecond)
		if err := os.WriteFile(logPath, []byte("after rotation\n"), 0644); err != nil {
			t.Errorf("recreate: %v", err)
		}
	}()

	line := nextWithin(t, src, 3*time.Second)
	if line.Content != "after rotation" || line.LineNum != 1 {
		t.Errorf("line = %+v, want after rotation at 1", line)
	}
}

func TestFollowSource_Truncation(t *testing.T) {
	src, logPath := newFollowed(t, "first statement line\nsecond statement line\n", WithFromStart(true))

	for i, want := range []string{"first statement line", "second statement line"} {
		line := nextWithin(t, src, time.Second)
		if line.Content != want || line.LineNum != i+1 {
			t.Fatalf("line = %+v, want %q at %d", line, want, i+1)
		}
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		if err := os.Truncate(logPath, 0); err != nil {
			t.Errorf("truncate: %v", err)
			return
		}
		time.Sleep(100 * time.Millisecond)
		appendTo(t, logPath, "after truncate\n")
	}()

	line := nextWithin(t, src, 3*time.Second)
	if line.Content != "after truncate" {
		t.Errorf("Content = %q, want %q", line.Content, "after truncate")
	}
	if line.LineNum != 1 {
		t.Errorf("LineNum = %d, want 1 after truncation", line.LineNum)
	}
}

func TestFollowSource_ContextCancellation(t *testing.T) {
	src, _ := newFollowed(t, "")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := src.Next(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Next() error = %v, want DeadlineExceeded", err)
	}
}

func TestFollowSource_MissingFile(t *testing.T) {
	_, err := NewFollowSource(filepath.Join(t.TempDir(), "missing.log"))
	if err == nil {
		t.Error("NewFollowSource() expected error for missing file")
	}
}
