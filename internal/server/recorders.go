package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/SuperID/nanoservices/internal/config"
	"github.com/SuperID/nanoservices/pkg/commsutil"
	"github.com/SuperID/nanoservices/pkg/db"
	"github.com/SuperID/nanoservices/pkg/recorder"
	"github.com/SuperID/nanoservices/pkg/trace"
)

const recordersLogPrefix = "server:recorders"

// datePlaceholder in TRACE_LOG_FILE is replaced with the current date.
const datePlaceholder = "YYYY-MM-DD"

// traceLogPath expands the date placeholder in pattern.
func traceLogPath(pattern string, now time.Time) string {
	return strings.ReplaceAll(pattern, datePlaceholder, now.Format("2006-01-02"))
}

// buildRecorders opens every recorder named in TRACE_RECORDERS, in that order.
func (s *Server) buildRecorders(ctx context.Context) (trace.Recorder, error) {
	var recs trace.Multi
	for _, name := range s.cfg.TraceRecorders {
		rec, err := s.buildRecorder(ctx, name)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
		slog.Info(fmt.Sprintf("%s - Trace recorder enabled: %s", recordersLogPrefix, name))
	}
	if len(recs) == 0 {
		slog.Warn(fmt.Sprintf("%s - No trace recorders configured, trace events are discarded", recordersLogPrefix))
		return trace.Nop{}, nil
	}
	return recs, nil
}

func (s *Server) buildRecorder(ctx context.Context, name string) (trace.Recorder, error) {
	cfg := s.cfg
	switch name {
	case config.RecorderStream:
		return s.streamRecorder()

	case config.RecorderLogger:
		return recorder.NewLoggerRecorder(nil), nil

	case config.RecorderComms:
		if s.nc == nil {
			nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
			if err != nil {
				return nil, fmt.Errorf("%s - comms recorder: %w", recordersLogPrefix, err)
			}
			s.nc = nc
		}
		return recorder.NewCommsRecorder(s.nc, cfg.TraceSubject)

	case config.RecorderStore:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("%s - store recorder: %w", recordersLogPrefix, err)
		}
		s.pool = pool
		if cfg.RunMigrations {
			migrations, err := db.LoadMigrations(cfg.MigrationPath)
			if err != nil {
				return nil, fmt.Errorf("%s - failed to load migrations: %w", recordersLogPrefix, err)
			}
			if err := db.RunMigrations(ctx, pool, migrations); err != nil {
				return nil, fmt.Errorf("%s - failed to run migrations: %w", recordersLogPrefix, err)
			}
		}
		store, err := recorder.NewStoreRecorder(db.NewRepository(pool), cfg.StoreBufferSize)
		if err != nil {
			return nil, err
		}
		s.store = store
		return store, nil

	case config.RecorderOTel:
		s.tp = sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(newLogSpanProcessor(slog.Default())))
		return recorder.NewOTelRecorder(s.tp.Tracer(tracerName)), nil

	case config.RecorderBuffer:
		s.buffer = trace.NewBuffer(cfg.BufferCapacity)
		return s.buffer, nil
	}
	return nil, fmt.Errorf("%s - unknown recorder %q", recordersLogPrefix, name)
}

func (s *Server) streamRecorder() (*recorder.StreamRecorder, error) {
	opts := recorder.StreamOptions{Format: s.cfg.TraceFormat}
	if s.cfg.TraceNewline {
		opts.Newline = "\n"
	}
	if s.cfg.TraceLogFile == "" {
		return recorder.NewStreamRecorder(s.stdout, opts)
	}

	path := traceLogPath(s.cfg.TraceLogFile, time.Now())
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to open trace log %s: %w", recordersLogPrefix, path, err)
	}
	s.logFile = f
	slog.Info(fmt.Sprintf("%s - Writing trace log to %s", recordersLogPrefix, path))
	return recorder.NewStreamRecorder(f, opts)
}
