package dispatcher

import (
	"fmt"
	"sync"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/SuperID/nanoservices/pkg/svcerr"
	"github.com/SuperID/nanoservices/pkg/trace"
	"github.com/SuperID/nanoservices/pkg/traceid"
)

// Context is the request-scoped state of a single invocation. It is owned by that
// invocation and must not be reused for another one.
type Context struct {
	// RequestID is the hierarchical trace identifier of this invocation.
	RequestID string

	manager    *Manager
	service    *Service
	params     Params
	recorder   trace.Recorder
	clock      clockz.Clock
	settlement *settlement

	// emitMu keeps events for this request ID in emission order.
	emitMu sync.Mutex

	mu        sync.Mutex
	startTime time.Time
	stopTime  time.Time
	spent     time.Duration
	completed bool
	counter   int
}

// ContextOptions configures a new Context. Zero values are filled in by the Manager.
type ContextOptions struct {
	Service   *Service
	RequestID string
	Params    map[string]interface{}
	Callback  Callback
}

func newContext(m *Manager, recorder trace.Recorder, requestID string, opts ContextOptions) *Context {
	c := &Context{
		RequestID:  requestID,
		manager:    m,
		service:    opts.Service,
		params:     NewParams(opts.Params),
		recorder:   recorder,
		clock:      m.clock,
		settlement: newSettlement(opts.Callback),
	}
	c.startTime = c.clock.Now()
	c.record(trace.KindCall, trace.CallPayload{Service: c.ServiceName(), Params: c.params.Map()})
	return c
}

// Params returns the frozen parameter snapshot.
func (c *Context) Params() Params {
	return c.params
}

// ServiceName returns the registered name of the service bound to this context, or
// an empty string for a bare root context.
func (c *Context) ServiceName() string {
	if c.service == nil {
		return ""
	}
	return c.service.Name
}

// Manager returns the owning Manager.
func (c *Context) Manager() *Manager {
	return c.manager
}

// StartTime returns when the context was created.
func (c *Context) StartTime() time.Time {
	return c.startTime
}

// StopTime returns when the context completed, or the zero time.
func (c *Context) StopTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopTime
}

// Spent returns the elapsed time between creation and completion.
func (c *Context) Spent() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.spent
}

// Completed reports whether Result or Error has taken effect.
func (c *Context) Completed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}

// Future settles when this context completes.
func (c *Context) Future() *Future {
	return c.settlement.future
}

// Result completes the context successfully.
func (c *Context) Result(result interface{}) {
	c.complete(result, nil)
}

// Error completes the context with err. A nil err is replaced by an
// INVALID_CONFIGURATION error so the outcome is never mistaken for success.
func (c *Context) Error(err error) {
	if err == nil {
		err = svcerr.InvalidConfiguration("context.Error called with nil error")
	}
	c.complete(nil, err)
}

// complete is the single completion path. Later calls are ignored and only leave a
// debug event behind, always after the terminal event.
func (c *Context) complete(result interface{}, err error) {
	c.emitMu.Lock()
	c.mu.Lock()
	if c.completed {
		c.mu.Unlock()
		c.recordLocked(trace.KindDebug, fmt.Sprintf("context.complete(): already completed, ignoring %s", outcomeKind(err)))
		c.emitMu.Unlock()
		return
	}
	c.completed = true
	c.stopTime = c.clock.Now()
	c.spent = c.stopTime.Sub(c.startTime)
	spent := c.spent.Milliseconds()
	c.mu.Unlock()

	if err != nil {
		c.recordLocked(trace.KindError, trace.ErrorPayload{Spent: spent, Error: err.Error()})
	} else {
		c.recordLocked(trace.KindResult, trace.ResultPayload{Spent: spent, Result: result})
	}
	c.emitMu.Unlock()
	c.settlement.settle(result, err)
}

// Debug emits a debug event. It never fails.
func (c *Context) Debug(format string, args ...interface{}) {
	c.record(trace.KindDebug, fmt.Sprintf(format, args...))
}

// Log emits a log event. It never fails.
func (c *Context) Log(format string, args ...interface{}) {
	c.record(trace.KindLog, fmt.Sprintf(format, args...))
}

// Call invokes the named service with a child context and returns a future for its
// outcome. cb, when non-nil, observes the same outcome. An unregistered name settles
// immediately with a SERVICE_NOT_FOUND error.
func (c *Context) Call(name string, params map[string]interface{}, cb Callback) *Future {
	svc := c.manager.GetService(name)
	if svc == nil {
		err := svcerr.ServiceNotFound(name)
		c.Debug("context.call(): %v", err)
		return settledFuture(cb, nil, err)
	}

	c.mu.Lock()
	c.counter++
	index := c.counter
	c.mu.Unlock()

	child := c.manager.NewContext(ContextOptions{
		Service:   svc,
		RequestID: traceid.DeriveChildID(c.RequestID, index),
		Params:    params,
		Callback:  cb,
	})
	svc.invoke(child)
	return child.Future()
}

func (c *Context) record(kind trace.Kind, payload interface{}) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.recordLocked(kind, payload)
}

// recordLocked emits an event; the caller holds emitMu.
func (c *Context) recordLocked(kind trace.Kind, payload interface{}) {
	if c.recorder == nil {
		return
	}
	trace.SafeRecord(c.recorder, trace.Event{
		Time:      c.clock.Now(),
		RequestID: c.RequestID,
		Kind:      kind,
		Service:   c.ServiceName(),
		Payload:   payload,
	})
}

func outcomeKind(err error) trace.Kind {
	if err != nil {
		return trace.KindError
	}
	return trace.KindResult
}
