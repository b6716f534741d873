package dispatcher

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/SuperID/nanoservices/pkg/semver"
)

const registryLogPrefix = "dispatcher:registry"

// Registry maps service names to services. Safe for concurrent use; registration is
// expected to happen during setup, before steady-state dispatch.
type Registry struct {
	mu       sync.RWMutex
	services map[string]*Service
	versions map[string][]string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		services: make(map[string]*Service),
		versions: make(map[string][]string),
	}
}

// Register stores handler under name, replacing any previous registration.
func (r *Registry) Register(name string, handler Handler) (*Service, error) {
	svc, err := NewService(name, handler)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.services[svc.Name]; exists {
		slog.Debug(fmt.Sprintf("%s - replacing service %s", registryLogPrefix, svc.Name))
	} else if svc.Version != "" {
		r.versions[svc.Base] = append(r.versions[svc.Base], svc.Version)
	}
	r.services[svc.Name] = svc

	slog.Debug(fmt.Sprintf("%s - registered service %s", registryLogPrefix, svc.Name))
	return svc, nil
}

// Lookup resolves name to a service, or nil.
//
// An exact registered name always wins. Otherwise "name@range" picks the highest
// registered version satisfying range, and a bare name picks the highest version.
func (r *Registry) Lookup(name string) *Service {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if svc, ok := r.services[name]; ok {
		return svc
	}

	ref, err := semver.ParseServiceRef(name)
	if err != nil {
		return nil
	}
	if !ref.Versioned() {
		if svc, ok := r.services[ref.Name]; ok {
			return svc
		}
	}
	version, ok := semver.ResolveVersion(r.versions[ref.Name], ref.Range)
	if !ok {
		return nil
	}
	return r.services[semver.BuildServiceString(ref.Name, version)]
}

// Names returns every registered name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered services.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.services)
}
