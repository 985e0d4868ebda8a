package scanner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccollicutt/pgcrunch/pkg/classifier"
	"github.com/ccollicutt/pgcrunch/pkg/output"
	"github.com/ccollicutt/pgcrunch/pkg/parser"
)

// sliceSource replays a fixed list of lines and errors.
type sliceSource struct {
	items []any
}

func (s *sliceSource) Next(ctx context.Context) (*parser.LogLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.items) == 0 {
		return nil, io.EOF
	}
	item := s.items[0]
	s.items = s.items[1:]
	switch v := item.(type) {
	case string:
		return &parser.LogLine{Content: v, Source: "test.log"}, nil
	case error:
		return nil, v
	default:
		panic("sliceSource: unsupported item")
	}
}

func (s *sliceSource) Close() error { return nil }

func TestRun_PairsAcrossSource(t *testing.T) {
	e, out := newTestEngine()
	src := &sliceSource{items: []any{
		"2024-01-01 10:00:00 UTC [1](23): statement: SELECT *",
		"   FROM foo",
		"   WHERE x = 1",
		"2024-01-01 10:00:01 UTC [1](23): duration: 1.234 ms",
	}}

	stats, err := e.Run(context.Background(), src)
	require.NoError(t, err)

	require.Len(t, out.Records(), 1)
	assert.Equal(t, "SELECT * FROM foo WHERE x = 1", out.Records()[0].Statement)
	assert.Equal(t, int64(4), stats.Lines)
	assert.Equal(t, int64(1), stats.Records)
}

func TestRun_ReadErrorsAreSkipped(t *testing.T) {
	var logs bytes.Buffer
	out := output.NewCollector()
	e := New(classifier.Default(), out, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	src := &sliceSource{items: []any{
		"2024-01-01 10:00:00 UTC [1](23): statement: SELECT 1",
		&parser.ReadError{Source: "test.log", Line: 2, Err: parser.ErrInvalidUTF8},
		"2024-01-01 10:00:01 UTC [1](23): duration: 2 ms",
	}}

	stats, err := e.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ReadErrors)
	assert.Equal(t, int64(2), stats.Lines)
	assert.Len(t, out.Records(), 1)
	assert.Contains(t, logs.String(), "skipping unreadable input")
	assert.Contains(t, logs.String(), "line=2")
}

func TestRun_SourceErrorStops(t *testing.T) {
	e, _ := newTestEngine()
	boom := errors.New("boom")
	src := &sliceSource{items: []any{boom}}

	_, err := e.Run(context.Background(), src)
	require.ErrorIs(t, err, boom)
}

func TestRun_Cancelled(t *testing.T) {
	e, _ := newTestEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx, &sliceSource{items: []any{"x"}})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRun_WriterErrorIsWrapped(t *testing.T) {
	boom := errors.New("disk full")
	e := New(classifier.Default(), output.RecordWriterFunc(func(output.Record) error {
		return boom
	}))
	src := &sliceSource{items: []any{
		"2024-01-01 10:00:00 UTC [1](1): statement: SELECT 1",
		"2024-01-01 10:00:00 UTC [1](1): duration: 0.1 ms",
	}}

	_, err := e.Run(context.Background(), src)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "writing record")
}

func TestRun_FileSourceWithInvalidUTF8(t *testing.T) {
	content := "2024-01-01 10:00:00 UTC [1](7): statement: SELECT 'a'\n" +
		"2024-01-01 10:00:00 UTC [1](8): statement: SELECT '\xff'\n" +
		"2024-01-01 10:00:01 UTC [1](7): duration: 3.5 ms\n"
	path := filepath.Join(t.TempDir(), "postgresql.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	src := parser.NewFileSource([]string{path})
	defer src.Close()

	var buf bytes.Buffer
	e := New(classifier.Default(), output.NewCSVWriter(&buf),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	stats, err := e.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ReadErrors)
	assert.Equal(t, "7,3.5,"+strconv.FormatUint(Fingerprint("SELECT 'a'"), 10)+",SELECT 'a'\n", buf.String())
}

func TestStats_LogValue(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	logger.Info("scan complete", "stats", Stats{Lines: 3, Records: 1, ReadErrors: 2})

	assert.Contains(t, logs.String(), "stats.lines=3")
	assert.Contains(t, logs.String(), "stats.records=1")
	assert.Contains(t, logs.String(), "stats.read_errors=2")
}

func TestRun_StatementWithoutDurationAtEOF(t *testing.T) {
	var logs bytes.Buffer
	out := output.NewCollector()
	e := New(classifier.Default(), out,
		WithLogger(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))))

	src := &sliceSource{items: []any{
		"2024-01-01 10:00:00 UTC [1](23): statement: SELECT *",
		"   FROM foo",
	}}

	stats, err := e.Run(context.Background(), src)
	require.NoError(t, err)
	require.IsType(t, Accumulating{}, e.State())
	assert.Empty(t, out.Records())
	assert.Equal(t, int64(1), stats.PendingStatements)
	assert.Contains(t, logs.String(), "statements without a duration at end of input")
	assert.Contains(t, logs.String(), "count=1")
}
