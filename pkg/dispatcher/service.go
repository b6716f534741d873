package dispatcher

import (
	"github.com/SuperID/nanoservices/pkg/semver"
	"github.com/SuperID/nanoservices/pkg/svcerr"
)

// Handler is the body of a service. It receives the invocation context and completes
// it through Context.Result or Context.Error, possibly from another goroutine after
// it returns. A non-nil return value, or a panic, completes the context with that
// error.
type Handler func(ctx *Context) error

// Service is a named, registered handler.
type Service struct {
	// Name is the registered name, e.g. "user.get" or "user.get@1.2.0".
	Name string
	// Base is the name without its version.
	Base string
	// Version is the exact semantic version, or empty.
	Version string
	Handler Handler
}

// NewService validates name and handler.
func NewService(name string, handler Handler) (*Service, error) {
	if handler == nil {
		return nil, svcerr.InvalidConfiguration("service %q: handler must not be nil", name)
	}
	ref, err := semver.ParseServiceRef(name)
	if err != nil {
		return nil, svcerr.InvalidConfiguration("service %q: %v", name, err)
	}
	if ref.Versioned() && !semver.ValidVersion(ref.Range) {
		return nil, svcerr.InvalidConfiguration("service %q: version %q is not an exact semantic version", name, ref.Range)
	}
	return &Service{
		Name:    ref.Raw,
		Base:    ref.Name,
		Version: ref.Range,
		Handler: handler,
	}, nil
}

// invoke runs the handler on its own goroutine, so it never runs inside the frame of
// the call that scheduled it. This is the single catch boundary for the handler.
func (s *Service) invoke(ctx *Context) {
	go func() {
		defer func() {
			if v := recover(); v != nil {
				ctx.Error(svcerr.FromPanic(v))
			}
		}()
		if err := s.Handler(ctx); err != nil {
			ctx.Error(err)
		}
	}()
}
