package recorder

import (
	"fmt"
	"log/slog"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/SuperID/nanoservices/pkg/commsutil"
	"github.com/SuperID/nanoservices/pkg/svcerr"
	"github.com/SuperID/nanoservices/pkg/trace"
)

const commsLogPrefix = "recorder:comms"

// Message is the COMMS wire form of a trace event. Content carries the rendered
// payload so subscribers need no knowledge of payload types.
type Message struct {
	Time      time.Time `json:"time"`
	RequestID string    `json:"requestId"`
	Kind      string    `json:"kind"`
	Service   string    `json:"service,omitempty"`
	Content   string    `json:"content"`
}

// NewMessage converts e to its wire form.
func NewMessage(e trace.Event) Message {
	return Message{
		Time:      e.Time,
		RequestID: e.RequestID,
		Kind:      string(e.Kind),
		Service:   e.Service,
		Content:   e.Content(),
	}
}

// Event converts m back into an event whose payload is the rendered content.
func (m Message) Event() trace.Event {
	return trace.Event{
		Time:      m.Time,
		RequestID: m.RequestID,
		Kind:      trace.Kind(m.Kind),
		Service:   m.Service,
		Payload:   m.Content,
	}
}

// CommsRecorder publishes every event to "<prefix>.<kind>" on a COMMS connection.
type CommsRecorder struct {
	nc     *comms.Conn
	prefix string
}

// NewCommsRecorder creates a CommsRecorder. An empty prefix uses
// commsutil.SubjectTrace.
func NewCommsRecorder(nc *comms.Conn, prefix string) (*CommsRecorder, error) {
	if nc == nil {
		return nil, svcerr.InvalidConfiguration("comms recorder: connection must not be nil")
	}
	if prefix == "" {
		prefix = commsutil.SubjectTrace
	}
	return &CommsRecorder{nc: nc, prefix: prefix}, nil
}

// Record implements trace.Recorder. Publish failures are logged, never returned.
func (c *CommsRecorder) Record(e trace.Event) {
	data, err := commsutil.EncodePayload(NewMessage(e))
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to encode event for %s: %v", commsLogPrefix, e.RequestID, err))
		return
	}
	subject := commsutil.BuildTraceSubject(c.prefix, string(e.Kind))
	if err := c.nc.Publish(subject, data); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to publish to %s: %v", commsLogPrefix, subject, err))
	}
}
