package recorder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SuperID/nanoservices/pkg/trace"
)

// LoggerRecorder forwards each event to an slog.Logger as "[id] [kind] content".
type LoggerRecorder struct {
	logger *slog.Logger
}

// NewLoggerRecorder wraps logger; nil uses slog.Default().
func NewLoggerRecorder(logger *slog.Logger) *LoggerRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggerRecorder{logger: logger}
}

// Record implements trace.Recorder.
func (l *LoggerRecorder) Record(e trace.Event) {
	l.logger.Log(context.Background(), levelFor(e.Kind), fmt.Sprintf("[%s] [%s] %s", e.RequestID, e.Kind, e.Content()))
}

func levelFor(kind trace.Kind) slog.Level {
	switch kind {
	case trace.KindDebug:
		return slog.LevelDebug
	case trace.KindLog:
		return slog.LevelInfo
	case trace.KindError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
