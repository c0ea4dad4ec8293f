package harness

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/roach88/monbridge/internal/bridge"
	"github.com/roach88/monbridge/internal/engine"
	"github.com/roach88/monbridge/internal/ir"
	"github.com/roach88/monbridge/internal/store"
	"github.com/roach88/monbridge/internal/testutil"
)

// Harness is the test execution engine.
// It runs one scenario against a real monitor, recording every call into an
// isolated store with deterministic session IDs and timestamps.
type Harness struct {
	store    *store.Store
	engine   ir.Engine
	monitor  *bridge.Monitor
	recorder *store.Recorder
	logger   *zap.Logger
}

// RunOption configures Run.
type RunOption func(*runConfig)

type runConfig struct {
	logger *zap.Logger
	engine ir.Engine
}

// WithLogger sets the logger used for the run. Default: no-op.
func WithLogger(logger *zap.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithEngine replaces the stream engine. Default: engine.New().
func WithEngine(e ir.Engine) RunOption {
	return func(c *runConfig) {
		c.engine = e
	}
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database and session record
// 2. Build the monitor from the scenario's spec and output selection
// 3. Execute steps, recording each call and checking expectations
// 4. Evaluate assertions against the trace and the store
func Run(scenario *Scenario, opts ...RunOption) (*Result, error) {
	cfg := runConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.engine == nil {
		cfg.engine = engine.New(engine.WithLogger(cfg.logger))
	}

	specText, err := scenario.SpecText()
	if err != nil {
		return nil, err
	}
	policy, err := bridge.ParseFramePolicy(scenario.FramePolicy)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:",
		store.WithIDGenerator(store.NewFixedGenerator("scenario-"+scenario.Name)),
		store.WithClock(testutil.NewDeterministicClock().Now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	outputs := bridge.SplitOutputs(scenario.Outputs)

	mon, err := bridge.NewMonitorWithOutputs(cfg.engine, specText, outputs,
		bridge.WithLogger(cfg.logger),
		bridge.WithFramePolicy(policy),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize monitor: %w", err)
	}
	defer mon.Close()

	sess, err := st.CreateSession(ctx, store.Session{
		Spec:        specText,
		Outputs:     outputs,
		FramePolicy: policy.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record session: %w", err)
	}

	h := &Harness{
		store:    st,
		engine:   cfg.engine,
		monitor:  mon,
		recorder: st.NewRecorder(sess.ID),
		logger:   cfg.logger.With(zap.String("scenario", scenario.Name)),
	}

	result := NewResult()
	result.SessionID = sess.ID
	result.Stride = mon.Stride()

	if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	if err := st.ReleaseSession(ctx, sess.ID); err != nil {
		return nil, fmt.Errorf("failed to release session: %w", err)
	}

	actx := &AssertionContext{
		Store:     st,
		Engine:    cfg.engine,
		SessionID: sess.ID,
		Ctx:       ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeSteps runs all steps in order and validates expect clauses.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		call := stepCall(step)

		// Marshal and eval failures are outcomes, not harness errors.
		res, callErr := store.Apply(h.monitor, call)
		if err := h.recorder.Record(ctx, call, res); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}

		ev := TraceEvent{
			Step:   i + 1,
			Mode:   call.Mode,
			Args:   stepArgs(call),
			Values: res.Values,
			Status: res.Status.String(),
		}
		if callErr != nil {
			ev.Error = callErr.Error()
		}
		result.AddTrace(ev)

		if step.Expect != nil && !sameFloats(*step.Expect, res.Values) {
			result.AddError(fmt.Sprintf("step %d (%s): expected %v, got %v", i+1, call.Mode, *step.Expect, res.Values))
		}
		if step.ExpectStatus != "" && step.ExpectStatus != ev.Status {
			result.AddError(fmt.Sprintf("step %d (%s): expected status %s, got %s", i+1, call.Mode, step.ExpectStatus, ev.Status))
		}

		h.logger.Debug("step completed",
			zap.Int("step", i+1),
			zap.String("mode", string(call.Mode)),
			zap.String("status", ev.Status),
			zap.Int("values", len(res.Values)),
		)
	}
	return nil
}

// stepCall converts a scenario step to a store call.
func stepCall(s Step) store.Call {
	switch s.Mode() {
	case bridge.ModeSingle:
		return store.Call{Mode: bridge.ModeSingle, Index: s.Single.Index, Value: s.Single.Value, Timestamp: s.Single.TS}
	case bridge.ModePartial:
		return store.Call{Mode: bridge.ModePartial, Values: s.Partial.Values, Active: s.Partial.Active}
	default:
		return store.Call{Mode: bridge.ModeTotal, Values: s.Total}
	}
}

// stepArgs renders a call's arguments for the trace. Floats use the
// ir.EncodeFloat form so the trace stays canonical-JSON safe.
func stepArgs(c store.Call) map[string]any {
	switch c.Mode {
	case bridge.ModeSingle:
		return map[string]any{
			"index": c.Index,
			"value": ir.EncodeFloat(c.Value),
			"ts":    ir.EncodeFloat(c.Timestamp),
		}
	case bridge.ModePartial:
		active := c.Active
		if active == nil {
			active = []bool{}
		}
		return map[string]any{
			"values": ir.EncodeFloats(c.Values),
			"active": active,
		}
	default:
		return map[string]any{
			"values": ir.EncodeFloats(c.Values),
		}
	}
}

// sameFloats compares verdict arrays, treating NaN as equal to NaN.
func sameFloats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] && !(math.IsNaN(a[i]) && math.IsNaN(b[i])) {
			return false
		}
	}
	return true
}
