package bridge

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/roach88/monbridge/internal/ir"
)

// Handle is the opaque token a host uses to reach a monitor.
// The zero Handle is never issued.
type Handle uint64

// Registry is an arena of monitors keyed by Handle.
//
// Each call borrows the monitor for its duration under a per-slot mutex, so
// two calls never touch the same evaluator at once. Calls on distinct
// handles run concurrently. Release removes the slot; every later use of
// the handle reports ErrUnknownHandle.
type Registry struct {
	engine ir.Engine
	opts   options
	logger *zap.Logger

	mu    sync.Mutex
	next  Handle
	slots map[Handle]*slot
}

type slot struct {
	mu  sync.Mutex
	mon *Monitor // nil once released
}

// NewRegistry creates an empty registry whose monitors use engine and opts.
func NewRegistry(engine ir.Engine, opts ...Option) *Registry {
	o := buildOptions(opts)
	return &Registry{
		engine: engine,
		opts:   o,
		logger: o.logger,
		slots:  make(map[Handle]*slot),
	}
}

// Initialize creates a monitor and returns its handle.
// On error no handle is issued.
func (r *Registry) Initialize(spec, outputsCSV string) (Handle, error) {
	return r.InitializeWithOutputs(spec, SplitOutputs(outputsCSV))
}

// InitializeWithOutputs is Initialize with the output selection already split.
func (r *Registry) InitializeWithOutputs(spec string, names []string) (Handle, error) {
	mon, err := newMonitor(r.engine, spec, names, r.opts)
	if err != nil {
		r.logger.Warn("monitor initialization failed", zap.Error(err))
		return 0, err
	}

	r.mu.Lock()
	r.next++
	h := r.next
	r.slots[h] = &slot{mon: mon}
	r.mu.Unlock()

	r.logger.Info("monitor registered",
		zap.Uint64("handle", uint64(h)),
		zap.Strings("outputs", mon.OutputNames()),
	)
	return h, nil
}

// Release removes the handle's monitor and closes its evaluator. It waits for
// an in-flight call on the same handle to finish.
func (r *Registry) Release(h Handle) error {
	r.mu.Lock()
	s, ok := r.slots[h]
	delete(r.slots, h)
	r.mu.Unlock()
	if !ok {
		return ErrUnknownHandle
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	mon := s.mon
	s.mon = nil
	if mon == nil {
		return ErrUnknownHandle
	}

	r.logger.Info("monitor released", zap.Uint64("handle", uint64(h)))
	return mon.Close()
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

// With runs fn with exclusive access to the handle's monitor.
func (r *Registry) With(h Handle, fn func(*Monitor) error) error {
	r.mu.Lock()
	s, ok := r.slots[h]
	r.mu.Unlock()
	if !ok {
		return ErrUnknownHandle
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mon == nil {
		return ErrUnknownHandle
	}
	return fn(s.mon)
}

// Close releases every live handle.
func (r *Registry) Close() error {
	r.mu.Lock()
	handles := make([]Handle, 0, len(r.slots))
	for h := range r.slots {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	var firstErr error
	for _, h := range handles {
		if err := r.Release(h); err != nil && firstErr == nil && !errors.Is(err, ErrUnknownHandle) {
			firstErr = err
		}
	}
	return firstErr
}
