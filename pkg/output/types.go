// Package output provides the record type emitted by a scan and the writers
// that serialize it.
package output

import (
	"strconv"
	"sync"
)

// Record is one statement paired with the duration reported for it.
type Record struct {
	// PID is the backend process id that ran the statement.
	PID int

	// Duration is the duration numeral exactly as it appeared in the log.
	Duration string

	// Fingerprint is a 64-bit hash of Statement.
	Fingerprint uint64

	// Statement is the reassembled, whitespace-normalized statement text.
	Statement string
}

// Fields returns the record as CSV fields: pid, duration, fingerprint, statement.
func (r Record) Fields() []string {
	return []string{
		strconv.Itoa(r.PID),
		r.Duration,
		strconv.FormatUint(r.Fingerprint, 10),
		r.Statement,
	}
}

// Collector keeps records in memory.
type Collector struct {
	mu      sync.Mutex
	records []Record
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// WriteRecord appends rec.
func (c *Collector) WriteRecord(rec Record) error {
	c.mu.Lock()
	c.records = append(c.records, rec)
	c.mu.Unlock()
	return nil
}

// Records returns a copy of the collected records.
func (c *Collector) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// Count returns the number of collected records.
func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}
