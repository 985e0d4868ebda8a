package output

// RecordWriter receives completed pairings in the order they complete.
type RecordWriter interface {
	// WriteRecord writes one record. An error means the sink is unusable.
	WriteRecord(rec Record) error
}

// RecordWriterFunc adapts a function to RecordWriter.
type RecordWriterFunc func(rec Record) error

// WriteRecord calls f(rec).
func (f RecordWriterFunc) WriteRecord(rec Record) error {
	return f(rec)
}
