package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ccollicutt/pgcrunch/pkg/parser"
)

// Run feeds every line from source into the engine until the source is
// exhausted or ctx is cancelled. Read errors are logged at warn level and
// counted; the scan carries on with whatever the source delivers next.
//
// A nil error means the source reached io.EOF. Cancellation returns the
// context error; a writer failure is returned wrapped.
func (e *Engine) Run(ctx context.Context, source parser.LogSource) (Stats, error) {
	for {
		line, err := source.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			var re *parser.ReadError
			if errors.As(err, &re) {
				e.stats.readErrors.Add(1)
				e.logger.Warn("skipping unreadable input", "source", re.Source, "line", re.Line, "error", re.Err)
				continue
			}
			return e.Stats(), err
		}

		if err := e.Advance(line.Content); err != nil {
			return e.Stats(), fmt.Errorf("writing record: %w", err)
		}
	}

	if n := pendingCount(e.state); n > 0 {
		e.logger.Debug("statements without a duration at end of input", "count", n)
	}
	return e.Stats(), nil
}
