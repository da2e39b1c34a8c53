// Package lifecycle owns the shared resources opened by service operations
// during a run and releases them exactly once.
//
// Resources are registered as named lazy openers with Provide and opened on
// first Acquire. Shutdown releases every opened resource in reverse open
// order. It is idempotent, safe to call concurrently with an in-flight
// Acquire, and never fails: each release error is logged and the remaining
// resources are still released.
//
// Shutdown is wired to every termination path at the process boundary:
//
//	m := lifecycle.New(logger)
//	stop := m.ShutdownOnSignal(os.Exit, os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	defer m.RecoverAndShutdown()
//	defer m.Shutdown()
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
)

// ErrShutdown is returned by Acquire once Shutdown has started.
var ErrShutdown = errors.New("lifecycle: resources already released")

// ReleaseFunc closes one resource.
type ReleaseFunc func() error

// Opener opens a resource and returns it with its release function.
type Opener func(ctx context.Context) (any, ReleaseFunc, error)

type resource struct {
	name    string
	value   any
	release ReleaseFunc
}

// pendingOpen is an open in progress; done closes once value or err is set.
type pendingOpen struct {
	done  chan struct{}
	value any
	err   error
}

// Manager is the resource lifecycle manager for one run.
type Manager struct {
	logger *slog.Logger

	mu       sync.Mutex
	openers  map[string]Opener
	byName   map[string]*resource
	pending  map[string]*pendingOpen
	opened   []*resource
	closed   bool
	released []string

	once sync.Once
}

// New creates a Manager. A nil logger means slog.Default().
func New(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:  logger,
		openers: make(map[string]Opener),
		byName:  make(map[string]*resource),
		pending: make(map[string]*pendingOpen),
	}
}

// Provide registers a lazy opener under name, replacing any earlier one.
// It has no effect on a resource that is already open.
func (m *Manager) Provide(name string, open Opener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openers[name] = open
}

// Acquire returns the resource registered under name, opening it on first
// use. The opener runs without the lock held, so Shutdown never waits on a
// slow open. A resource whose open finishes after Shutdown started is
// released at once and Acquire returns ErrShutdown. Concurrent callers for
// the same name share one open.
func (m *Manager) Acquire(ctx context.Context, name string) (any, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrShutdown
	}
	if r, ok := m.byName[name]; ok {
		m.mu.Unlock()
		return r.value, nil
	}
	if p, ok := m.pending[name]; ok {
		m.mu.Unlock()
		select {
		case <-p.done:
			return p.value, p.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	open, ok := m.openers[name]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("lifecycle: no resource named %q", name)
	}
	// err stays set if open panics, so waiters never see a nil resource.
	p := &pendingOpen{done: make(chan struct{}), err: fmt.Errorf("open %s: opener panicked", name)}
	m.pending[name] = p
	m.mu.Unlock()
	defer close(p.done)

	value, release, err := open(ctx)

	m.mu.Lock()
	delete(m.pending, name)
	if err != nil {
		m.mu.Unlock()
		p.err = fmt.Errorf("open %s: %w", name, err)
		return nil, p.err
	}

	r := &resource{name: name, value: value, release: release}
	if m.closed {
		m.mu.Unlock()
		m.logger.Debug("resource opened after shutdown, releasing", "resource", name)
		if err := releaseSafely(r); err != nil {
			m.logger.Error("error releasing resource", "resource", name, "error", err)
		}
		m.mu.Lock()
		m.released = append(m.released, name)
		m.mu.Unlock()
		p.err = ErrShutdown
		return nil, ErrShutdown
	}

	m.byName[name] = r
	m.opened = append(m.opened, r)
	m.mu.Unlock()
	p.value, p.err = value, nil
	m.logger.Debug("resource opened", "resource", name)
	return value, nil
}

// Acquire is the typed form of Manager.Acquire.
func Acquire[T any](ctx context.Context, m *Manager, name string) (T, error) {
	var zero T
	v, err := m.Acquire(ctx, name)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("lifecycle: resource %q is %T, not %T", name, v, zero)
	}
	return t, nil
}

// Shutdown releases every opened resource in reverse open order. Only the
// first call does any work; concurrent callers wait for it to finish.
func (m *Manager) Shutdown() {
	m.once.Do(m.shutdown)
}

func (m *Manager) shutdown() {
	m.mu.Lock()
	m.closed = true
	opened := m.opened
	m.opened = nil
	m.mu.Unlock()

	for i := len(opened) - 1; i >= 0; i-- {
		r := opened[i]
		if err := releaseSafely(r); err != nil {
			m.logger.Error("error releasing resource", "resource", r.name, "error", err)
		} else {
			m.logger.Debug("resource released", "resource", r.name)
		}
		m.mu.Lock()
		m.released = append(m.released, r.name)
		m.mu.Unlock()
	}
	m.logger.Debug("lifecycle shutdown complete", "released", len(opened))
}

// releaseSafely calls the release function, turning a panic into an error.
func releaseSafely(r *resource) (err error) {
	if r.release == nil {
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return r.release()
}

// IsShutdown reports whether Shutdown has started.
func (m *Manager) IsShutdown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Released returns the names of released resources in release order.
func (m *Manager) Released() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.released))
	copy(out, m.released)
	return out
}

// RecoverAndShutdown must be deferred directly. On a panic it releases all
// resources and re-panics with the same value.
func (m *Manager) RecoverAndShutdown() {
	if p := recover(); p != nil {
		m.logger.Error("panic, releasing resources", "panic", p)
		m.Shutdown()
		panic(p)
	}
}

// ShutdownOnSignal releases all resources and calls exit(0) when one of
// sigs arrives. The returned stop function unregisters the handler.
func (m *Manager) ShutdownOnSignal(exit func(code int), sigs ...os.Signal) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-ch:
			m.logger.Info("received signal, shutting down", "signal", sig.String())
			m.Shutdown()
			exit(0)
		case <-done:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(done)
		})
	}
}
