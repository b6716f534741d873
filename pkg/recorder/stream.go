// Package recorder provides trace.Recorder implementations: a templated line writer,
// an slog adapter, a COMMS publisher, an asynchronous Postgres store, and an
// OpenTelemetry span bridge.
package recorder

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/SuperID/nanoservices/pkg/svcerr"
	"github.com/SuperID/nanoservices/pkg/trace"
)

const streamLogPrefix = "recorder:stream"

// Line templates.
const (
	// DefaultFormat is the template used when none is configured.
	DefaultFormat = "$date $time $type: [$id] $content"
	// LineFormat produces lines the trace log reader can reconstruct.
	LineFormat = "$date $time [$id] [$type] $content"
)

// Template variables, longest first so "$datetime" is not read as "$date".
var templateVars = []string{
	"$timestamps",
	"$timestamp",
	"$datetime",
	"$hostname",
	"$content",
	"$date",
	"$time",
	"$type",
	"$pid",
	"$id",
}

// StreamOptions configures a StreamRecorder.
type StreamOptions struct {
	// Format is the line template; empty means DefaultFormat.
	Format string
	// Newline is appended to every line when non-empty.
	Newline string
}

// StreamRecorder writes one templated line per event to an io.Writer. Safe for
// concurrent use; a write failure is logged and the event dropped.
type StreamRecorder struct {
	mu       sync.Mutex
	w        io.Writer
	segments []segment
	newline  string
	pid      string
	hostname string
}

type segment struct {
	literal  string
	variable string
}

// NewStreamRecorder creates a StreamRecorder writing to w.
func NewStreamRecorder(w io.Writer, opts StreamOptions) (*StreamRecorder, error) {
	if w == nil {
		return nil, svcerr.InvalidConfiguration("stream recorder: writer must not be nil")
	}
	format := opts.Format
	if format == "" {
		format = DefaultFormat
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return &StreamRecorder{
		w:        w,
		segments: compileFormat(format),
		newline:  opts.Newline,
		pid:      strconv.Itoa(os.Getpid()),
		hostname: hostname,
	}, nil
}

// compileFormat splits a template into literal and variable segments.
func compileFormat(format string) []segment {
	var (
		segments []segment
		literal  strings.Builder
	)
	flush := func() {
		if literal.Len() > 0 {
			segments = append(segments, segment{literal: literal.String()})
			literal.Reset()
		}
	}

	for i := 0; i < len(format); {
		if format[i] == '$' {
			if v := matchVar(format[i:]); v != "" {
				flush()
				segments = append(segments, segment{variable: v})
				i += len(v)
				continue
			}
		}
		literal.WriteByte(format[i])
		i++
	}
	flush()
	return segments
}

func matchVar(s string) string {
	for _, v := range templateVars {
		if strings.HasPrefix(s, v) {
			return v
		}
	}
	return ""
}

// Format renders e with the configured template, without the newline.
func (s *StreamRecorder) Format(e trace.Event) string {
	var b strings.Builder
	for _, seg := range s.segments {
		if seg.variable == "" {
			b.WriteString(seg.literal)
			continue
		}
		b.WriteString(s.expand(seg.variable, e))
	}
	return b.String()
}

func (s *StreamRecorder) expand(variable string, e trace.Event) string {
	switch variable {
	case "$id":
		return e.RequestID
	case "$date":
		return e.Time.Format("2006/01/02")
	case "$time":
		return e.Time.Format("15:04:05")
	case "$datetime":
		return e.Time.Format("2006/01/02 15:04:05")
	case "$timestamp":
		return strconv.FormatInt(e.Time.UnixMilli(), 10)
	case "$timestamps":
		return strconv.FormatInt(e.Time.Unix(), 10)
	case "$type":
		return string(e.Kind)
	case "$content":
		return e.Content()
	case "$pid":
		return s.pid
	case "$hostname":
		return s.hostname
	}
	return variable
}

// Record implements trace.Recorder.
func (s *StreamRecorder) Record(e trace.Event) {
	line := s.Format(e) + s.newline

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.w, line); err != nil {
		slog.Warn(fmt.Sprintf("%s - write failed for %s: %v", streamLogPrefix, e.RequestID, err))
	}
}
