package recorder

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/SuperID/nanoservices/pkg/trace"
	"github.com/SuperID/nanoservices/pkg/traceid"
)

// Span attribute keys.
const (
	AttrRequestID = attribute.Key("nanoservices.request_id")
	AttrService   = attribute.Key("nanoservices.service")
	AttrParams    = attribute.Key("nanoservices.params")
	AttrSpentMS   = attribute.Key("nanoservices.spent_ms")
	AttrMessage   = attribute.Key("nanoservices.message")
)

const tracerName = "github.com/SuperID/nanoservices"

// OTelRecorder turns every service invocation into an OpenTelemetry span. A child
// request's span is parented on its parent request's span while that one is open.
// Bare root contexts, which are never bound to a service, produce no span.
type OTelRecorder struct {
	tracer oteltrace.Tracer

	mu    sync.Mutex
	spans map[string]oteltrace.Span
}

// NewOTelRecorder creates an OTelRecorder. A nil tracer uses the global provider.
func NewOTelRecorder(tracer oteltrace.Tracer) *OTelRecorder {
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &OTelRecorder{
		tracer: tracer,
		spans:  make(map[string]oteltrace.Span),
	}
}

// Record implements trace.Recorder.
func (o *OTelRecorder) Record(e trace.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch e.Kind {
	case trace.KindCall:
		o.start(e)
	case trace.KindDebug, trace.KindLog:
		if span, ok := o.spans[e.RequestID]; ok {
			span.AddEvent(string(e.Kind),
				oteltrace.WithTimestamp(e.Time),
				oteltrace.WithAttributes(AttrMessage.String(e.Content())))
		}
	case trace.KindResult:
		if span, ok := o.spans[e.RequestID]; ok {
			if p, ok := e.Payload.(trace.ResultPayload); ok {
				span.SetAttributes(AttrSpentMS.Int64(p.Spent))
			}
			span.SetStatus(codes.Ok, "")
			span.End(oteltrace.WithTimestamp(e.Time))
			delete(o.spans, e.RequestID)
		}
	case trace.KindError:
		if span, ok := o.spans[e.RequestID]; ok {
			msg := e.Content()
			if p, ok := e.Payload.(trace.ErrorPayload); ok {
				msg = p.Error
				span.SetAttributes(AttrSpentMS.Int64(p.Spent))
			}
			span.RecordError(errors.New(msg), oteltrace.WithTimestamp(e.Time))
			span.SetStatus(codes.Error, msg)
			span.End(oteltrace.WithTimestamp(e.Time))
			delete(o.spans, e.RequestID)
		}
	}
}

// Open returns how many spans are started but not yet ended.
func (o *OTelRecorder) Open() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.spans)
}

func (o *OTelRecorder) start(e trace.Event) {
	if e.Service == "" {
		return
	}

	ctx := context.Background()
	if parentID, ok := traceid.ParentID(e.RequestID); ok {
		if parent, ok := o.spans[parentID]; ok {
			ctx = oteltrace.ContextWithSpan(ctx, parent)
		}
	}

	attrs := []attribute.KeyValue{
		AttrRequestID.String(e.RequestID),
		AttrService.String(e.Service),
	}
	if p, ok := e.Payload.(trace.CallPayload); ok && len(p.Params) > 0 {
		attrs = append(attrs, AttrParams.String(e.Content()))
	}

	_, span := o.tracer.Start(ctx, e.Service,
		oteltrace.WithTimestamp(e.Time),
		oteltrace.WithSpanKind(oteltrace.SpanKindInternal),
		oteltrace.WithAttributes(attrs...))
	o.spans[e.RequestID] = span
}
