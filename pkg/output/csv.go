package output

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVWriter writes records as CSV rows without a header. Every row is flushed
// as soon as it is written so a followed scan produces output immediately.
type CSVWriter struct {
	w *csv.Writer
}

// NewCSVWriter creates a CSVWriter on top of w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// WriteRecord writes and flushes one row.
func (c *CSVWriter) WriteRecord(rec Record) error {
	if err := c.w.Write(rec.Fields()); err != nil {
		return fmt.Errorf("encoding csv row: %w", err)
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("flushing record: %w", err)
	}
	return nil
}
