package trace

import (
	"strings"
	"sync"
)

// Buffer is a bounded in-memory recorder. When full, the oldest events are dropped.
// Safe for concurrent use.
type Buffer struct {
	mu       sync.Mutex
	events   []Event
	capacity int
	dropped  int
}

// NewBuffer creates a Buffer holding at most capacity events; capacity <= 0 means
// unbounded.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{capacity: capacity}
}

// Record implements Recorder.
func (b *Buffer) Record(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, event)
	if b.capacity > 0 && len(b.events) > b.capacity {
		over := len(b.events) - b.capacity
		b.events = append(b.events[:0:0], b.events[over:]...)
		b.dropped += over
	}
}

// Events returns a copy of the buffered events in record order.
func (b *Buffer) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.events...)
}

// ByRequestID returns the buffered events for a single request ID.
func (b *Buffer) ByRequestID(id string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Event
	for _, e := range b.events {
		if e.RequestID == id {
			out = append(out, e)
		}
	}
	return out
}

// WithPrefix returns the buffered events whose request ID starts with prefix.
func (b *Buffer) WithPrefix(prefix string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Event
	for _, e := range b.events {
		if strings.HasPrefix(e.RequestID, prefix) {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of buffered events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// Dropped returns how many events were evicted to honour the capacity.
func (b *Buffer) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Reset discards all buffered events.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
	b.dropped = 0
}
