// Package scanner reassembles multi-line statements from a PostgreSQL log and
// pairs each one with the duration its backend reports later.
package scanner

import (
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/ccollicutt/pgcrunch/pkg/classifier"
	"github.com/ccollicutt/pgcrunch/pkg/output"
)

// Engine consumes log lines one at a time and writes a record for every
// statement/duration pairing. It is not safe for concurrent Advance calls;
// Stats may be read from any goroutine.
type Engine struct {
	classifier *classifier.Classifier
	out        output.RecordWriter
	logger     *slog.Logger

	state State
	stats counters
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for debug diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Engine in the Idle state.
func New(c *classifier.Classifier, out output.RecordWriter, opts ...Option) *Engine {
	e := &Engine{
		classifier: c,
		out:        out,
		logger:     slog.Default(),
		state:      NewIdle(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current scan state.
func (e *Engine) State() State {
	return e.state
}

// Advance processes one line. The only error it returns comes from the
// record writer.
func (e *Engine) Advance(line string) error {
	e.stats.lines.Add(1)
	next, err := e.step(e.state, line, e.classifier.Classify(line))
	e.state = next
	e.stats.pending.Store(int64(pendingCount(next)))
	return err
}

// pendingCount counts statements still waiting for a duration, including one
// that is being accumulated.
func pendingCount(s State) int {
	n := len(s.Completed())
	if _, ok := s.(Accumulating); ok {
		n++
	}
	return n
}

func (e *Engine) step(s State, line string, o classifier.Outcome) (State, error) {
	if o.EntryStart() {
		e.stats.entries.Add(1)
	}

	switch s := s.(type) {
	case Accumulating:
		if !o.EntryStart() {
			s.Fragments = append(s.Fragments, classifier.Normalize(line))
			return s, nil
		}
		// The boundary line closes the statement and is then handled on
		// its own merits.
		idle := Idle{completed: s.completed}
		e.finalize(idle, s)
		return e.dispatch(idle, o)
	case Idle:
		return e.dispatch(s, o)
	default:
		panic("scanner: unknown state")
	}
}

func (e *Engine) finalize(idle Idle, s Accumulating) {
	if _, exists := idle.completed[s.PID]; exists {
		e.stats.overwritten.Add(1)
		e.logger.Debug("statement replaced before its duration arrived", "pid", s.PID)
	}
	idle.completed[s.PID] = strings.Join(s.Fragments, "")
}

func (e *Engine) dispatch(s Idle, o classifier.Outcome) (State, error) {
	switch o.Kind {
	case classifier.QueryStart:
		return Accumulating{
			Fragments: []string{o.Text},
			PID:       o.PID,
			completed: s.completed,
		}, nil

	case classifier.Duration:
		stmt, ok := s.completed[o.PID]
		if !ok {
			e.stats.dangling.Add(1)
			e.logger.Debug("dangling duration", "pid", o.PID, "duration", o.Text)
			return s, nil
		}
		delete(s.completed, o.PID)

		rec := output.Record{
			PID:         o.PID,
			Duration:    o.Text,
			Fingerprint: Fingerprint(stmt),
			Statement:   stmt,
		}
		if err := e.out.WriteRecord(rec); err != nil {
			return s, err
		}
		e.stats.records.Add(1)
		return s, nil

	default:
		return s, nil
	}
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	return e.stats.snapshot()
}

// Stats summarizes what an Engine has seen so far.
type Stats struct {
	// Lines is the number of lines passed to Advance.
	Lines int64
	// Entries is the number of lines that started a new log entry.
	Entries int64
	// Records is the number of records written.
	Records int64
	// DanglingDurations counts durations with no statement waiting for them.
	DanglingDurations int64
	// OverwrittenStatements counts statements replaced by a newer statement
	// from the same backend before their duration arrived.
	OverwrittenStatements int64
	// PendingStatements is the number of statements still waiting for a
	// duration, counting one that is still being accumulated.
	PendingStatements int64
	// ReadErrors counts lines or files the line source could not deliver.
	ReadErrors int64
}

// LogValue renders the stats as a log group.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("lines", s.Lines),
		slog.Int64("entries", s.Entries),
		slog.Int64("records", s.Records),
		slog.Int64("dangling_durations", s.DanglingDurations),
		slog.Int64("overwritten_statements", s.OverwrittenStatements),
		slog.Int64("pending_statements", s.PendingStatements),
		slog.Int64("read_errors", s.ReadErrors),
	)
}

type counters struct {
	lines       atomic.Int64
	entries     atomic.Int64
	records     atomic.Int64
	dangling    atomic.Int64
	overwritten atomic.Int64
	pending     atomic.Int64
	readErrors  atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Lines:                 c.lines.Load(),
		Entries:               c.entries.Load(),
		Records:               c.records.Load(),
		DanglingDurations:     c.dangling.Load(),
		OverwrittenStatements: c.overwritten.Load(),
		PendingStatements:     c.pending.Load(),
		ReadErrors:            c.readErrors.Load(),
	}
}
