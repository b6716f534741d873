package recorder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SuperID/nanoservices/pkg/svcerr"
	"github.com/SuperID/nanoservices/pkg/trace"
)

type memoryWriter struct {
	mu      sync.Mutex
	events  []trace.Event
	batches int
	block   chan struct{}
	entered chan struct{}
	once    sync.Once
	err     error
}

func (w *memoryWriter) InsertEvents(_ context.Context, events []trace.Event) error {
	if w.entered != nil {
		w.once.Do(func() { close(w.entered) })
	}
	if w.block != nil {
		<-w.block
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.batches++
	if w.err != nil {
		return w.err
	}
	w.events = append(w.events, events...)
	return nil
}

func (w *memoryWriter) ids() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.events))
	for _, e := range w.events {
		out = append(out, e.RequestID)
	}
	return out
}

func closeStore(t *testing.T, s *StoreRecorder) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		t.Fatalf("recorder:store_test - Close: %v", err)
	}
}

func TestStoreRecorder_WritesInOrderAndDrainsOnClose(t *testing.T) {
	w := &memoryWriter{}
	s, err := NewStoreRecorder(w, 64)
	if err != nil {
		t.Fatalf("recorder:store_test - NewStoreRecorder: %v", err)
	}

	want := []string{"R", "R:1", "R:1", "R:2", "R"}
	for _, id := range want {
		s.Record(trace.Event{RequestID: id, Kind: trace.KindLog})
	}
	closeStore(t, s)

	got := w.ids()
	if len(got) != len(want) {
		t.Fatalf("recorder:store_test - stored %d events, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("recorder:store_test - event %d = %s, want %s", i, got[i], want[i])
		}
	}
	if s.Dropped() != 0 {
		t.Errorf("recorder:store_test - dropped = %d, want 0", s.Dropped())
	}
}

func TestStoreRecorder_DropsWhenFull(t *testing.T) {
	w := &memoryWriter{block: make(chan struct{}), entered: make(chan struct{})}
	s, _ := NewStoreRecorder(w, 2)

	s.Record(trace.Event{RequestID: "R", Kind: trace.KindLog})
	select {
	case <-w.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("recorder:store_test - writer never started")
	}

	// The writer is blocked on the first event; only two more fit in the buffer.
	for i := 0; i < 9; i++ {
		s.Record(trace.Event{RequestID: "R", Kind: trace.KindLog})
	}
	close(w.block)
	closeStore(t, s)

	if s.Dropped() != 7 {
		t.Errorf("recorder:store_test - dropped = %d, want 7", s.Dropped())
	}
	if n := len(w.ids()); n != 3 {
		t.Errorf("recorder:store_test - stored %d events, want 3", n)
	}
}

func TestStoreRecorder_RecordAfterCloseIsDropped(t *testing.T) {
	w := &memoryWriter{}
	s, _ := NewStoreRecorder(w, 4)
	closeStore(t, s)
	closeStore(t, s)

	s.Record(trace.Event{RequestID: "late", Kind: trace.KindLog})
	if s.Dropped() != 1 {
		t.Errorf("recorder:store_test - dropped = %d, want 1", s.Dropped())
	}
	if len(w.ids()) != 0 {
		t.Error("recorder:store_test - event stored after close")
	}
}

func TestStoreRecorder_WriteErrorsAreCounted(t *testing.T) {
	w := &memoryWriter{err: errors.New("connection refused")}
	s, _ := NewStoreRecorder(w, 4)
	s.Record(trace.Event{RequestID: "R", Kind: trace.KindLog})
	s.Record(trace.Event{RequestID: "R", Kind: trace.KindLog})
	closeStore(t, s)

	if s.Failed() != 2 {
		t.Errorf("recorder:store_test - failed = %d, want 2", s.Failed())
	}
}

func TestStoreRecorder_CloseHonorsContext(t *testing.T) {
	w := &memoryWriter{block: make(chan struct{})}
	defer close(w.block)
	s, _ := NewStoreRecorder(w, 4)
	s.Record(trace.Event{RequestID: "R", Kind: trace.KindLog})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("recorder:store_test - expected deadline exceeded, got %v", err)
	}
}

func TestNewStoreRecorder_NilWriter(t *testing.T) {
	if _, err := NewStoreRecorder(nil, 0); !errors.Is(err, svcerr.ErrInvalidConfiguration) {
		t.Errorf("recorder:store_test - expected INVALID_CONFIGURATION, got %v", err)
	}
}
