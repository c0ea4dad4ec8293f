package testutil

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/monbridge/internal/ir"
)

// ErrEvaluatorClosed is returned by a ScriptedEvaluator after Close.
var ErrEvaluatorClosed = errors.New("scripted evaluator closed")

// ScriptedEngine is an ir.Engine whose evaluators replay preset frames.
//
// It lets bridge tests control exactly which outputs update in which frame,
// including orders a real engine would never produce.
//
// Thread-safety: all methods are safe for concurrent use.
type ScriptedEngine struct {
	graph *ir.StreamGraph

	mu             sync.Mutex
	script         [][]ir.Frame
	errs           map[int]error
	parseErr       error
	instantiateErr error
	closeErr       error
	specs          []string
	evaluators     []*ScriptedEvaluator
}

// NewScriptedEngine creates an engine whose graph has the given Float64
// inputs and outputs, with outputs in catalog order.
func NewScriptedEngine(inputs, outputs []string) *ScriptedEngine {
	g := &ir.StreamGraph{
		Inputs:  make([]ir.InputStream, len(inputs)),
		Outputs: make([]ir.OutputStream, len(outputs)),
		Order:   make([]int, len(outputs)),
	}
	for i, name := range inputs {
		g.Inputs[i] = ir.InputStream{Name: name, Type: ir.TypeFloat64}
	}
	for i, name := range outputs {
		g.Outputs[i] = ir.OutputStream{Name: name, Index: i, Type: ir.TypeFloat64, Op: "scripted"}
		g.Order[i] = i
	}
	return &ScriptedEngine{graph: g, errs: make(map[int]error)}
}

// Script sets the frames each evaluator returns, one entry per AcceptEvent
// call. Calls past the end of the script return no frames.
func (e *ScriptedEngine) Script(calls ...[]ir.Frame) *ScriptedEngine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.script = calls
	return e
}

// FailAt makes AcceptEvent call n (0-based) return err.
func (e *ScriptedEngine) FailAt(n int, err error) *ScriptedEngine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs[n] = err
	return e
}

// FailParse makes every Parse call return err.
func (e *ScriptedEngine) FailParse(err error) *ScriptedEngine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.parseErr = err
	return e
}

// FailInstantiate makes every Instantiate call return err.
func (e *ScriptedEngine) FailInstantiate(err error) *ScriptedEngine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.instantiateErr = err
	return e
}

// FailClose makes Close on every later evaluator return err.
func (e *ScriptedEngine) FailClose(err error) *ScriptedEngine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeErr = err
	return e
}

// Parse records spec and returns a copy of the scripted graph.
func (e *ScriptedEngine) Parse(spec string) (*ir.StreamGraph, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.specs = append(e.specs, spec)
	if e.parseErr != nil {
		return nil, e.parseErr
	}
	g := *e.graph
	return &g, nil
}

// Instantiate returns a new evaluator running the current script.
func (e *ScriptedEngine) Instantiate(g *ir.StreamGraph) (ir.Evaluator, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.instantiateErr != nil {
		return nil, e.instantiateErr
	}
	errs := make(map[int]error, len(e.errs))
	for k, v := range e.errs {
		errs[k] = v
	}
	ev := &ScriptedEvaluator{numInputs: g.NumInputs(), script: e.script, errs: errs, closeErr: e.closeErr}
	e.evaluators = append(e.evaluators, ev)
	return ev, nil
}

// Specs returns every spec text passed to Parse, in call order.
func (e *ScriptedEngine) Specs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.specs...)
}

// Evaluators returns every evaluator created so far, in creation order.
func (e *ScriptedEngine) Evaluators() []*ScriptedEvaluator {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*ScriptedEvaluator(nil), e.evaluators...)
}

// RecordedEvent is one AcceptEvent call as the evaluator saw it.
type RecordedEvent struct {
	Event []ir.Value
	Time  time.Duration
}

// ScriptedEvaluator returns preset frames and records every event.
type ScriptedEvaluator struct {
	numInputs int
	script    [][]ir.Frame
	errs      map[int]error
	closeErr  error

	mu     sync.Mutex
	events []RecordedEvent
	closed bool
}

// AcceptEvent records the event and returns the next scripted frames.
func (ev *ScriptedEvaluator) AcceptEvent(event []ir.Value, ts time.Duration) ([]ir.Frame, error) {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	if ev.closed {
		return nil, ErrEvaluatorClosed
	}
	if len(event) != ev.numInputs {
		return nil, fmt.Errorf("scripted evaluator: event has %d values, want %d", len(event), ev.numInputs)
	}

	n := len(ev.events)
	ev.events = append(ev.events, RecordedEvent{Event: append([]ir.Value(nil), event...), Time: ts})
	if err, ok := ev.errs[n]; ok {
		return nil, err
	}
	if n >= len(ev.script) {
		return nil, nil
	}
	return ev.script[n], nil
}

// Events returns every recorded event in arrival order.
func (ev *ScriptedEvaluator) Events() []RecordedEvent {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	return append([]RecordedEvent(nil), ev.events...)
}

// Close marks the evaluator closed and returns the error set by FailClose.
func (ev *ScriptedEvaluator) Close() error {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	ev.closed = true
	return ev.closeErr
}

// Closed reports whether Close has been called.
func (ev *ScriptedEvaluator) Closed() bool {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	return ev.closed
}

// Frame builds a frame at second sec with updates given as alternating
// output positions and values.
func Frame(sec int, updates ...any) ir.Frame {
	if len(updates)%2 != 0 {
		panic("testutil.Frame: updates must be position/value pairs")
	}
	f := ir.Frame{Time: time.Duration(sec) * time.Second}
	for i := 0; i < len(updates); i += 2 {
		f.Updates = append(f.Updates, ir.Update{
			Output: updates[i].(int),
			Value:  updates[i+1].(ir.Value),
		})
	}
	return f
}
