// Package detector works out which log_line_prefix variant a PostgreSQL log
// file was written with.
package detector

import (
	"bufio"
	"context"
	"os"
	"sort"
	"strings"

	"github.com/ccollicutt/pgcrunch/pkg/classifier"
)

// DetectionResult holds the result of analyzing a log file.
type DetectionResult struct {
	Matches      []FormatMatch // Formats that matched, best first
	SampledLines int           // Number of lines sampled
	EntryLines   int           // Entry starts with a process id under the best match
}

// FormatMatch represents a format that matched with its confidence score.
type FormatMatch struct {
	Format classifier.Format

	// Confidence is the share of entry-start lines whose process id could be
	// extracted (0.0 to 1.0).
	Confidence float64

	MatchCount int    // Entry starts with an extractable process id
	EntryCount int    // Lines matching the entry-start pattern
	Statements int    // Statement starts
	Durations  int    // Duration reports
	SampleLine string // First line that matched
}

// Detector analyzes log samples against a set of formats.
type Detector struct {
	formats    []classifier.Format
	sampleSize int
}

// Option configures the Detector.
type Option func(*Detector)

// WithSampleSize sets the number of lines to sample (default 200).
func WithSampleSize(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.sampleSize = n
		}
	}
}

// WithFormats replaces the built-in formats as detection candidates.
func WithFormats(formats ...classifier.Format) Option {
	return func(d *Detector) {
		if len(formats) > 0 {
			d.formats = formats
		}
	}
}

// New creates a new Detector with the built-in formats.
func New(opts ...Option) *Detector {
	d := &Detector{
		formats:    classifier.BuiltinFormats(),
		sampleSize: 200,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectFromFile analyzes a log file and returns detected formats.
func (d *Detector) DetectFromFile(ctx context.Context, path string) (*DetectionResult, error) {
	lines, err := d.sampleFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return d.DetectFromLines(lines)
}

// DetectFromLines analyzes a slice of log lines. It fails only when a
// candidate format does not compile.
func (d *Detector) DetectFromLines(lines []string) (*DetectionResult, error) {
	result := &DetectionResult{
		SampledLines: len(lines),
	}

	for _, format := range d.formats {
		c, err := classifier.New(format)
		if err != nil {
			return nil, err
		}

		m := FormatMatch{Format: format}
		for _, line := range lines {
			if !c.IsEntryStart(line) {
				continue
			}
			m.EntryCount++

			o := c.Classify(line)
			if _, ok := c.PID(line); !ok {
				continue
			}
			m.MatchCount++
			if m.SampleLine == "" {
				m.SampleLine = line
			}
			switch o.Kind {
			case classifier.QueryStart:
				m.Statements++
			case classifier.Duration:
				m.Durations++
			}
		}

		if m.MatchCount == 0 {
			continue
		}
		m.Confidence = float64(m.MatchCount) / float64(m.EntryCount)
		result.Matches = append(result.Matches, m)
	}

	// Sort by confidence, then by how many lines matched, then by pattern
	// length (more specific first).
	sort.SliceStable(result.Matches, func(i, j int) bool {
		a, b := result.Matches[i], result.Matches[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.MatchCount != b.MatchCount {
			return a.MatchCount > b.MatchCount
		}
		return len(a.Format.PID) > len(b.Format.PID)
	})

	if len(result.Matches) > 0 {
		result.EntryLines = result.Matches[0].MatchCount
	}

	return result, nil
}

// sampleFile reads up to sampleSize non-empty lines from the head of a file.
func (d *Detector) sampleFile(ctx context.Context, path string) ([]string, error) {
	// #nosec G304 - path is provided by user via CLI
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() && len(lines) < d.sampleSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := scanner.Text()
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

// BestMatch returns the highest confidence match, or nil if none found.
func (r *DetectionResult) BestMatch() *FormatMatch {
	if len(r.Matches) == 0 {
		return nil
	}
	return &r.Matches[0]
}

// HasMatch returns true if at least one format matched.
func (r *DetectionResult) HasMatch() bool {
	return len(r.Matches) > 0
}
