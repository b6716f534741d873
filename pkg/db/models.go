package db

import (
	"time"

	"github.com/SuperID/nanoservices/pkg/trace"
)

// TraceEvent represents a row in the trace_events table.
type TraceEvent struct {
	ID        int64     `json:"id"`
	RequestID string    `json:"request_id"`
	Kind      string    `json:"kind"`
	Service   string    `json:"service"`
	Payload   string    `json:"payload"`
	Created   time.Time `json:"created"`
}

// NewTraceEvent converts a recorder event into its row form. Structured payloads are
// stored in their rendered JSON form.
func NewTraceEvent(e trace.Event) TraceEvent {
	return TraceEvent{
		RequestID: e.RequestID,
		Kind:      string(e.Kind),
		Service:   e.Service,
		Payload:   e.Content(),
		Created:   e.Time,
	}
}

// Event converts the row back into a trace event whose payload is the stored text.
func (t TraceEvent) Event() trace.Event {
	return trace.Event{
		Time:      t.Created,
		RequestID: t.RequestID,
		Kind:      trace.Kind(t.Kind),
		Service:   t.Service,
		Payload:   t.Payload,
	}
}

// ListEventsParams holds parameters for ListEvents.
type ListEventsParams struct {
	// Prefix restricts results to request IDs starting with it. Empty lists all.
	Prefix string
	// Since restricts results to events created at or after it.
	Since time.Time
	// Limit caps the number of rows; zero means DefaultListLimit.
	Limit int
}

// DefaultListLimit bounds ListEvents when no limit is given.
const DefaultListLimit = 10000
