package trace

import (
	"fmt"
	"log/slog"
)

const logPrefix = "trace:recorder"

// Recorder receives one event per context lifecycle point.
//
// Record must not panic and has no return contract beyond "accepted"; failures are
// the implementation's to swallow or report out of band.
type Recorder interface {
	Record(event Event)
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(event Event)

// Record calls f(event).
func (f RecorderFunc) Record(event Event) { f(event) }

// Nop discards all events.
type Nop struct{}

// Record is a no-op.
func (Nop) Record(Event) {}

// SafeRecord records event on r, recovering from a panicking recorder.
func SafeRecord(r Recorder, event Event) {
	if r == nil {
		return
	}
	defer func() {
		if v := recover(); v != nil {
			slog.Warn(fmt.Sprintf("%s - recorder panicked on %s event for %s: %v", logPrefix, event.Kind, event.RequestID, v))
		}
	}()
	r.Record(event)
}

// Multi fans each event out to every recorder, in order.
type Multi []Recorder

// Record implements Recorder.
func (m Multi) Record(event Event) {
	for _, r := range m {
		SafeRecord(r, event)
	}
}
