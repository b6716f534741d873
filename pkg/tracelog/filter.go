package tracelog

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

const filterLogPrefix = "tracelog:filter"

// maxLineSize bounds a single trace line; call payloads can carry large params.
const maxLineSize = 1 << 20

// FilterOptions configures a Filter.
type FilterOptions struct {
	// RequestID keeps only records whose ID starts with it. Empty keeps everything.
	RequestID string
	// IgnoreErrorLine skips malformed lines instead of failing on them.
	IgnoreErrorLine bool
	// OnRecord, when set, is called for every kept record as it arrives.
	OnRecord func(Record)
	// NoRetain hands kept records to OnRecord only; Records stays empty. Long-running
	// followers set it.
	NoRetain bool
}

// Filter is a streaming line filter: it parses lines, keeps the records under the
// configured request ID prefix, and notifies OnRecord for each one. Safe for
// concurrent use.
type Filter struct {
	opts FilterOptions

	mu      sync.Mutex
	records []Record
	skipped int
}

// NewFilter creates a Filter.
func NewFilter(opts FilterOptions) *Filter {
	return &Filter{opts: opts}
}

// WriteLine parses and filters one line. Blank lines are ignored. A malformed line
// returns an INVALID_LOG_LINE_FORMAT error unless IgnoreErrorLine is set.
func (f *Filter) WriteLine(line string) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	r, err := ParseLine(line)
	if err != nil {
		if f.opts.IgnoreErrorLine {
			f.mu.Lock()
			f.skipped++
			f.mu.Unlock()
			return nil
		}
		return err
	}
	f.Add(r)
	return nil
}

// Add filters an already parsed record and reports whether it was kept.
func (f *Filter) Add(r Record) bool {
	if f.opts.RequestID != "" && !strings.HasPrefix(r.ID, f.opts.RequestID) {
		return false
	}
	if !f.opts.NoRetain {
		f.mu.Lock()
		f.records = append(f.records, r)
		f.mu.Unlock()
	}
	if f.opts.OnRecord != nil {
		f.opts.OnRecord(r)
	}
	return true
}

// ReadFrom feeds every line of r through the filter. It stops at the first malformed
// line unless IgnoreErrorLine is set.
func (f *Filter) ReadFrom(r io.Reader) (int64, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var n int64
	for scanner.Scan() {
		line := scanner.Text()
		n += int64(len(line)) + 1
		if err := f.WriteLine(line); err != nil {
			return n, err
		}
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("%s - read lines: %w", filterLogPrefix, err)
	}
	return n, nil
}

// Records returns the kept records in arrival order.
func (f *Filter) Records() []Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Record(nil), f.records...)
}

// Skipped returns how many malformed lines were ignored.
func (f *Filter) Skipped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.skipped
}

// ReadRecords parses every line of r, keeping records under prefix.
func ReadRecords(r io.Reader, prefix string, ignoreErrorLine bool) ([]Record, error) {
	f := NewFilter(FilterOptions{RequestID: prefix, IgnoreErrorLine: ignoreErrorLine})
	if _, err := f.ReadFrom(r); err != nil {
		return nil, err
	}
	return f.Records(), nil
}
