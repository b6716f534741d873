package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

const futureLogPrefix = "dispatcher:future"

// Callback observes the outcome of a call. Exactly one of result or err is meaningful.
type Callback func(result interface{}, err error)

// Future settles once with the outcome of a call.
type Future struct {
	done   chan struct{}
	result interface{}
	err    error
}

// Done is closed when the future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future has settled.
func (f *Future) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the future settles or ctx is done. A context error does not stop
// the call; its late outcome is still delivered to the future.
func (f *Future) Wait(ctx context.Context) (interface{}, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result blocks until the future settles.
func (f *Future) Result() (interface{}, error) {
	<-f.done
	return f.result, f.err
}

// settlement is the single completion point shared by a callback and a future.
type settlement struct {
	once     sync.Once
	future   *Future
	callback Callback
}

func newSettlement(cb Callback) *settlement {
	return &settlement{
		future:   &Future{done: make(chan struct{})},
		callback: cb,
	}
}

// settle delivers the outcome to the future and then the callback. Only the first
// call has any effect; it reports whether this call settled.
func (s *settlement) settle(result interface{}, err error) bool {
	settled := false
	s.once.Do(func() {
		settled = true
		s.future.result = result
		s.future.err = err
		close(s.future.done)
		if s.callback != nil {
			s.invokeCallback(result, err)
		}
	})
	return settled
}

func (s *settlement) invokeCallback(result interface{}, err error) {
	defer func() {
		if v := recover(); v != nil {
			slog.Error(fmt.Sprintf("%s - completion callback panicked: %v", futureLogPrefix, v))
		}
	}()
	s.callback(result, err)
}

// settledFuture returns a future already settled with the given outcome, after
// notifying cb.
func settledFuture(cb Callback, result interface{}, err error) *Future {
	s := newSettlement(cb)
	s.settle(result, err)
	return s.future
}
