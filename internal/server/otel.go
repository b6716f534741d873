package server

import (
	"context"
	"fmt"
	"log/slog"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	otelLogPrefix = "server:otel"
	tracerName    = "github.com/SuperID/nanoservices/internal/server"
)

// logSpanProcessor reports every finished span at debug level.
type logSpanProcessor struct {
	logger *slog.Logger
}

func newLogSpanProcessor(logger *slog.Logger) *logSpanProcessor {
	return &logSpanProcessor{logger: logger}
}

func (p *logSpanProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *logSpanProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	sc := s.SpanContext()
	p.logger.Debug(fmt.Sprintf("%s - span %s trace=%s span=%s parent=%s took=%s status=%s",
		otelLogPrefix,
		s.Name(),
		sc.TraceID(),
		sc.SpanID(),
		s.Parent().SpanID(),
		s.EndTime().Sub(s.StartTime()),
		s.Status().Code,
	))
}

func (p *logSpanProcessor) Shutdown(context.Context) error   { return nil }
func (p *logSpanProcessor) ForceFlush(context.Context) error { return nil }
