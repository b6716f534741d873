// Package dispatcher invokes registered services by name. Every invocation gets its
// own Context carrying a hierarchical request ID, timing, a frozen parameter
// snapshot, and a settle-once completion shared by a callback and a Future.
package dispatcher

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/zoobzio/clockz"

	"github.com/SuperID/nanoservices/pkg/svcerr"
	"github.com/SuperID/nanoservices/pkg/trace"
	"github.com/SuperID/nanoservices/pkg/traceid"
)

const logPrefix = "dispatcher:manager"

// Manager owns the service registry and the active trace recorder, and creates the
// contexts invocations run in.
type Manager struct {
	registry *Registry
	recorder atomic.Pointer[recorderRef]
	clock    clockz.Clock
	idLength int
}

type recorderRef struct {
	r trace.Recorder
}

// NewManagerParams holds parameters for NewManager.
type NewManagerParams struct {
	// Recorder receives trace events; nil disables tracing.
	Recorder trace.Recorder
	// Clock defaults to the real clock.
	Clock clockz.Clock
	// RequestIDLength is the length of root request IDs, 16 to 48. Zero means 24.
	RequestIDLength int
}

// NewManager creates a Manager. Invalid options are rejected with an
// INVALID_CONFIGURATION error.
func NewManager(params NewManagerParams) (*Manager, error) {
	idLength := params.RequestIDLength
	if idLength == 0 {
		idLength = traceid.DefaultLength
	}
	if _, err := traceid.New(idLength); err != nil {
		return nil, fmt.Errorf("%s - invalid RequestIDLength: %w", logPrefix, err)
	}

	clock := params.Clock
	if clock == nil {
		clock = clockz.RealClock
	}

	m := &Manager{
		registry: NewRegistry(),
		clock:    clock,
		idLength: idLength,
	}
	m.SetRecorder(params.Recorder)
	return m, nil
}

// SetRecorder swaps the active recorder. Contexts created afterwards use it; contexts
// already running keep the recorder they were created with.
func (m *Manager) SetRecorder(r trace.Recorder) {
	m.recorder.Store(&recorderRef{r: r})
}

// Recorder returns the active recorder, or nil.
func (m *Manager) Recorder() trace.Recorder {
	if ref := m.recorder.Load(); ref != nil {
		return ref.r
	}
	return nil
}

// Register stores handler under name, replacing any previous registration.
func (m *Manager) Register(name string, handler Handler) error {
	if _, err := m.registry.Register(name, handler); err != nil {
		return fmt.Errorf("%s - register %q: %w", logPrefix, name, err)
	}
	return nil
}

// GetService resolves name, or returns nil.
func (m *Manager) GetService(name string) *Service {
	return m.registry.Lookup(name)
}

// Services returns the registered service names.
func (m *Manager) Services() []string {
	return m.registry.Names()
}

// Call creates a fresh root context and calls the named service from it.
func (m *Manager) Call(name string, params map[string]interface{}, cb Callback) *Future {
	return m.NewContext(ContextOptions{}).Call(name, params, cb)
}

// NewContext creates a context bound to the current recorder. A missing RequestID
// gets a fresh root ID.
func (m *Manager) NewContext(opts ContextOptions) *Context {
	requestID := opts.RequestID
	if requestID == "" {
		id, err := traceid.New(m.idLength)
		if err != nil {
			// idLength is validated in NewManager.
			slog.Error(fmt.Sprintf("%s - failed to generate request ID: %v", logPrefix, err))
			id, _ = traceid.New(traceid.DefaultLength)
		}
		requestID = id
	}
	return newContext(m, m.Recorder(), requestID, opts)
}

// IsServiceNotFound reports whether err reports an unregistered service.
func IsServiceNotFound(err error) bool {
	return svcerr.HasCode(err, svcerr.CodeServiceNotFound)
}
