// Package registry maps allow-listed service names to their operations.
//
// Authorization and resolution are separate steps: a name missing from the
// allow-list is an UnauthorizedServiceError (fatal for the run), while an
// allowed name with no implementation, or an implementation without the
// requested operation, is an ordinary per-call error.
package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/roach88/cronrun/internal/ir"
)

// Operation is one named, positionally-called capability of a service.
// It blocks until the work is done and reports failure through its error.
type Operation func(ctx context.Context, args ...ir.Literal) error

// Service looks up operations by name. A missing name is reported as
// ok == false, never as a panic.
type Service interface {
	Lookup(name string) (Operation, bool)
}

// Lister is implemented by services that can enumerate their operations.
type Lister interface {
	Operations() []string
}

// OperationSet is a Service backed by a plain map.
type OperationSet map[string]Operation

// Lookup returns the operation registered under name.
func (s OperationSet) Lookup(name string) (Operation, bool) {
	op, ok := s[name]
	return op, ok && op != nil
}

// Operations returns the operation names in sorted order.
func (s OperationSet) Operations() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry holds the allow-list and the registered services.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	allowed  map[string]struct{}
	services map[string]Service
}

// New creates a registry permitting exactly the given service names.
func New(allowed []string) *Registry {
	r := &Registry{
		allowed:  make(map[string]struct{}, len(allowed)),
		services: make(map[string]Service),
	}
	for _, name := range allowed {
		r.allowed[name] = struct{}{}
	}
	return r
}

// Register installs svc under name, replacing any earlier registration.
// Registering does not allow-list the name.
func (r *Registry) Register(name string, svc Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[name] = svc
}

// Authorize fails with *UnauthorizedServiceError unless name is allow-listed.
func (r *Registry) Authorize(name string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.allowed[name]; !ok {
		return &UnauthorizedServiceError{Service: name}
	}
	return nil
}

// Resolve returns the service registered under an authorized name.
func (r *Registry) Resolve(name string) (Service, error) {
	if err := r.Authorize(name); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[name]
	if !ok || svc == nil {
		return nil, &ServiceNotFoundError{Service: name}
	}
	return svc, nil
}

// Operation resolves service and looks up function on it.
func (r *Registry) Operation(service, function string) (Operation, error) {
	svc, err := r.Resolve(service)
	if err != nil {
		return nil, err
	}
	op, ok := svc.Lookup(function)
	if !ok {
		return nil, &UnknownFunctionError{Service: service, Function: function}
	}
	return op, nil
}

// Allowed returns the allow-listed names in sorted order.
func (r *Registry) Allowed() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.allowed))
	for name := range r.allowed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsAllowed reports whether name is on the allow-list.
func (r *Registry) IsAllowed(name string) bool {
	return r.Authorize(name) == nil
}

// OperationNames lists the operations of the service registered under
// name. The second result is false when nothing is registered.
func (r *Registry) OperationNames(name string) ([]string, bool) {
	r.mu.RLock()
	svc, ok := r.services[name]
	r.mu.RUnlock()
	if !ok || svc == nil {
		return nil, false
	}
	if l, ok := svc.(Lister); ok {
		return l.Operations(), true
	}
	return nil, true
}
