package bridge

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/monbridge/internal/ir"
)

// Status says why a Result has the values it has.
type Status int

const (
	// StatusOK means at least one verdict block was produced.
	StatusOK Status = iota

	// StatusNoFrames means the evaluator produced nothing relevant this tick.
	StatusNoFrames

	// StatusMarshalFailed means the host buffers were malformed.
	StatusMarshalFailed

	// StatusEvalFailed means the evaluator returned an error.
	StatusEvalFailed

	// StatusUnknownHandle means the handle was never issued or was released.
	StatusUnknownHandle
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoFrames:
		return "no_frames"
	case StatusMarshalFailed:
		return "marshal_failed"
	case StatusEvalFailed:
		return "eval_failed"
	case StatusUnknownHandle:
		return "unknown_handle"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is the outcome of one ingestion call.
//
// Values is never nil. Frames is the number of blocks in Values.
type Result struct {
	Values []float64
	Frames int
	Status Status
}

// Monitor pairs one evaluator with a fixed ingestion and extraction policy.
//
// A Monitor is single-owner: it must not be used from two goroutines at
// once. Registry adds per-handle locking on top.
type Monitor struct {
	eval        ir.Evaluator
	graph       *ir.StreamGraph
	names       []string
	relevantIxs []int
	numInputs   int
	policy      FramePolicy
	posture     Posture
	logger      *zap.Logger
	observer    Observer
}

// SplitOutputs splits a comma separated output list and trims each name.
func SplitOutputs(csv string) []string {
	parts := strings.Split(csv, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// NewMonitor parses spec, resolves the comma separated output selection and
// instantiates an evaluator.
func NewMonitor(engine ir.Engine, spec, outputsCSV string, opts ...Option) (*Monitor, error) {
	return NewMonitorWithOutputs(engine, spec, SplitOutputs(outputsCSV), opts...)
}

// NewMonitorWithOutputs is NewMonitor with the output selection already
// split. A fixed list of output names works the same way.
func NewMonitorWithOutputs(engine ir.Engine, spec string, names []string, opts ...Option) (*Monitor, error) {
	o := buildOptions(opts)
	return newMonitor(engine, spec, names, o)
}

func newMonitor(engine ir.Engine, spec string, names []string, o options) (*Monitor, error) {
	if engine == nil {
		return nil, &ConfigError{Kind: KindInstantiate, Err: errors.New("nil engine")}
	}

	g, err := engine.Parse(spec)
	if err != nil {
		return nil, &ConfigError{Kind: KindParse, Err: err}
	}

	relevant, err := resolveOutputs(g, names)
	if err != nil {
		return nil, err
	}

	eval, err := engine.Instantiate(g)
	if err != nil {
		return nil, &ConfigError{Kind: KindInstantiate, Err: err}
	}

	m := &Monitor{
		eval:        eval,
		graph:       g,
		names:       append([]string(nil), names...),
		relevantIxs: relevant,
		numInputs:   g.NumInputs(),
		policy:      o.policy,
		posture:     o.posture,
		logger:      o.logger,
		observer:    o.observer,
	}

	m.logger.Debug("monitor initialized",
		zap.String("spec_hash", g.SpecHash),
		zap.Int("num_inputs", m.numInputs),
		zap.Strings("outputs", m.names),
		zap.Ints("relevant_ixs", m.relevantIxs),
		zap.Stringer("frame_policy", m.policy),
	)
	m.observer.MonitorOpened()
	return m, nil
}

// resolveOutputs maps names to output positions, preserving order and
// duplicates.
func resolveOutputs(g *ir.StreamGraph, names []string) ([]int, error) {
	if len(names) == 0 {
		return nil, &ConfigError{Kind: KindEmptySelection, Err: errors.New("no outputs selected")}
	}
	relevant := make([]int, len(names))
	for i, name := range names {
		if name == "" {
			return nil, &ConfigError{Kind: KindEmptySelection, Err: fmt.Errorf("output %d has an empty name", i)}
		}
		ix, ok := g.OutputIndex(name)
		if !ok {
			return nil, &ConfigError{Kind: KindUnknownOutput, Name: name}
		}
		relevant[i] = ix
	}
	return relevant, nil
}

// NumInputs returns the number of declared inputs.
func (m *Monitor) NumInputs() int { return m.numInputs }

// Stride returns the number of values per verdict block.
func (m *Monitor) Stride() int { return len(m.relevantIxs) }

// Posture returns the failure posture the monitor was built with. A bare
// Monitor always reports failures as errors; callers that drive it directly
// decide what the posture means for them.
func (m *Monitor) Posture() Posture { return m.posture }

// RelevantIxs returns the resolved output positions in selection order.
func (m *Monitor) RelevantIxs() []int { return append([]int(nil), m.relevantIxs...) }

// OutputNames returns the selected output names in selection order.
func (m *Monitor) OutputNames() []string { return append([]string(nil), m.names...) }

// Graph returns the parsed stream graph.
func (m *Monitor) Graph() *ir.StreamGraph { return m.graph }

// IngestSingle sends an event where only input index has a value.
func (m *Monitor) IngestSingle(index int, value, ts float64) (Result, error) {
	event, t, err := SingleEvent(m.numInputs, index, value, ts)
	return m.ingest(ModeSingle, event, t, err)
}

// IngestTotal sends an event with every input present. buf holds one value
// per input followed by the timestamp.
func (m *Monitor) IngestTotal(buf []float64) (Result, error) {
	event, t, err := TotalEvent(m.numInputs, buf)
	return m.ingest(ModeTotal, event, t, err)
}

// IngestPartial sends an event where inputs with a false activity flag are
// absent.
func (m *Monitor) IngestPartial(values []float64, active []bool) (Result, error) {
	event, t, err := PartialEvent(m.numInputs, values, active)
	return m.ingest(ModePartial, event, t, err)
}

func (m *Monitor) ingest(mode MarshalMode, event []ir.Value, ts time.Duration, marshalErr error) (Result, error) {
	start := time.Now()

	if marshalErr != nil {
		res := Result{Values: []float64{}, Status: StatusMarshalFailed}
		m.observer.Ingested(mode, res, time.Since(start))
		return res, marshalErr
	}

	frames, err := m.eval.AcceptEvent(event, ts)
	if err != nil {
		res := Result{Values: []float64{}, Status: StatusEvalFailed}
		m.observer.Ingested(mode, res, time.Since(start))
		return res, &EvalError{Err: err}
	}

	values := Extract(frames, m.relevantIxs, m.policy)
	res := Result{Values: values, Frames: len(values) / len(m.relevantIxs), Status: StatusOK}
	if len(values) == 0 {
		res.Status = StatusNoFrames
	}

	m.observer.Ingested(mode, res, time.Since(start))
	m.logger.Debug("event ingested",
		zap.String("mode", string(mode)),
		zap.Duration("ts", ts),
		zap.Int("frames", len(frames)),
		zap.Int("blocks", res.Frames),
	)
	return res, nil
}

// Close releases the evaluator if it holds resources. A Monitor must not be
// used after Close.
func (m *Monitor) Close() error {
	m.observer.MonitorReleased()
	if c, ok := m.eval.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
