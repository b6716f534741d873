package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SuperID/nanoservices/pkg/svcerr"
	"github.com/SuperID/nanoservices/pkg/trace"
)

const storeLogPrefix = "recorder:store"

// Store defaults.
const (
	DefaultStoreBufferSize = 1024
	maxStoreBatch          = 128
	storeWriteTimeout      = 5 * time.Second
)

// EventWriter persists batches of events. *db.Repository implements it.
type EventWriter interface {
	InsertEvents(ctx context.Context, events []trace.Event) error
}

// StoreRecorder hands events to an EventWriter from a background goroutine. Record
// never blocks: when the buffer is full the event is dropped and counted.
type StoreRecorder struct {
	writer    EventWriter
	eventsCh  chan trace.Event
	stopCh    chan struct{}
	done      chan struct{}
	dropped   atomic.Int64
	failed    atomic.Int64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewStoreRecorder creates a StoreRecorder and starts its writer goroutine. A
// bufferSize <= 0 uses DefaultStoreBufferSize.
func NewStoreRecorder(writer EventWriter, bufferSize int) (*StoreRecorder, error) {
	if writer == nil {
		return nil, svcerr.InvalidConfiguration("store recorder: writer must not be nil")
	}
	if bufferSize <= 0 {
		bufferSize = DefaultStoreBufferSize
	}
	s := &StoreRecorder{
		writer:   writer,
		eventsCh: make(chan trace.Event, bufferSize),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Record implements trace.Recorder.
func (s *StoreRecorder) Record(e trace.Event) {
	if s.closed.Load() {
		s.dropped.Add(1)
		return
	}
	select {
	case s.eventsCh <- e:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded because the buffer was full or the
// recorder closed.
func (s *StoreRecorder) Dropped() int64 {
	return s.dropped.Load()
}

// Failed returns how many events were lost to write errors.
func (s *StoreRecorder) Failed() int64 {
	return s.failed.Load()
}

// Close stops accepting events and waits until buffered events are written or ctx is
// done.
func (s *StoreRecorder) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.stopCh)
	})
	select {
	case <-s.done:
		if d := s.Dropped(); d > 0 {
			slog.Warn(fmt.Sprintf("%s - %d trace events dropped", storeLogPrefix, d))
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s - close: %w", storeLogPrefix, ctx.Err())
	}
}

func (s *StoreRecorder) run() {
	defer close(s.done)

	for {
		select {
		case <-s.stopCh:
			// Drain what is already queued.
			for {
				batch := s.collect(nil)
				if len(batch) == 0 {
					return
				}
				s.write(batch)
			}
		case e := <-s.eventsCh:
			s.write(s.collect([]trace.Event{e}))
		}
	}
}

// collect appends queued events to batch without blocking.
func (s *StoreRecorder) collect(batch []trace.Event) []trace.Event {
	for len(batch) < maxStoreBatch {
		select {
		case e := <-s.eventsCh:
			batch = append(batch, e)
		default:
			return batch
		}
	}
	return batch
}

func (s *StoreRecorder) write(batch []trace.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
	defer cancel()
	if err := s.writer.InsertEvents(ctx, batch); err != nil {
		s.failed.Add(int64(len(batch)))
		slog.Error(fmt.Sprintf("%s - failed to store %d trace events: %v", storeLogPrefix, len(batch), err))
	}
}
