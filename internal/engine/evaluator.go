package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/roach88/monbridge/internal/ir"
)

// Evaluator runs one instantiated stream graph.
//
// Each AcceptEvent call is one tick:
//  1. Periodic deadlines up to and including ts are released, one frame each
//  2. Present inputs are coerced to their declared types and stored
//  3. Event-driven outputs are evaluated in dependency order
//  4. An event frame is emitted if at least one output fired
//
// Evaluation is all-or-nothing: if any step fails, history is unchanged.
//
// Evaluator is not safe for concurrent use.
type Evaluator struct {
	graph    *ir.StreamGraph
	order    []int
	periodic []int // periodic outputs in evaluation order
	clock    *Clock
	quota    *DeadlineQuota
	logger   *zap.Logger
	st       state
	closed   bool
}

// state is everything AcceptEvent mutates. It is copied before each event so
// a failed event can be discarded.
type state struct {
	inputs  []ir.Value      // last value per input
	outputs []ir.Value      // last value per output
	fired   []int64         // times each output has fired
	next    []time.Duration // next deadline per periodic output
	windows []window        // aggregation since the previous deadline
}

// window accumulates argument updates for periodic count and mean.
type window struct {
	steps  int64   // steps with at least one fresh argument
	events int64   // events observed
	n      int64   // numeric samples
	sum    float64 // sum of numeric samples
}

func newEvaluator(g *ir.StreamGraph, order []int, maxDeadlines int, logger *zap.Logger) *Evaluator {
	ev := &Evaluator{
		graph:  g,
		order:  order,
		clock:  NewClock(),
		quota:  NewDeadlineQuota(maxDeadlines),
		logger: logger,
		st: state{
			inputs:  absentSlice(len(g.Inputs)),
			outputs: absentSlice(len(g.Outputs)),
			fired:   make([]int64, len(g.Outputs)),
			next:    make([]time.Duration, len(g.Outputs)),
			windows: make([]window, len(g.Outputs)),
		},
	}
	for _, ix := range order {
		if out := g.Outputs[ix]; out.IsPeriodic() {
			ev.periodic = append(ev.periodic, ix)
			ev.st.next[ix] = out.Period
		}
	}
	return ev
}

func absentSlice(n int) []ir.Value {
	s := make([]ir.Value, n)
	for i := range s {
		s[i] = ir.Absent{}
	}
	return s
}

func (s state) clone() state {
	return state{
		inputs:  append([]ir.Value(nil), s.inputs...),
		outputs: append([]ir.Value(nil), s.outputs...),
		fired:   append([]int64(nil), s.fired...),
		next:    append([]time.Duration(nil), s.next...),
		windows: append([]window(nil), s.windows...),
	}
}

// AcceptEvent implements ir.Evaluator.
func (ev *Evaluator) AcceptEvent(event []ir.Value, ts time.Duration) ([]ir.Frame, error) {
	if ev.closed {
		return nil, ErrClosed
	}
	if len(event) != len(ev.graph.Inputs) {
		return nil, newShapeError(len(event), len(ev.graph.Inputs), ts)
	}
	if err := ev.clock.Check(ts); err != nil {
		return nil, err
	}

	work := ev.st.clone()
	ev.quota.Reset()

	var frames []ir.Frame
	for {
		d, ok := ev.nextDeadline(&work)
		if !ok || d > ts {
			break
		}
		if err := ev.quota.Check(d); err != nil {
			return nil, err
		}
		frame, err := ev.deadlineStep(&work, d)
		if err != nil {
			return nil, err
		}
		if len(frame.Updates) > 0 {
			frames = append(frames, frame)
		}
	}

	frame, err := ev.eventStep(&work, event, ts)
	if err != nil {
		return nil, err
	}
	if len(frame.Updates) > 0 {
		frames = append(frames, frame)
	}

	ev.st = work
	tick := ev.clock.Advance(ts)
	ev.logger.Debug("event accepted",
		zap.Int64("tick", tick),
		zap.Duration("ts", ts),
		zap.Int("frames", len(frames)),
	)
	return frames, nil
}

// Close releases the evaluator. Further events are rejected with ErrClosed.
func (ev *Evaluator) Close() error {
	ev.closed = true
	return nil
}

// Tick returns the number of accepted events.
func (ev *Evaluator) Tick() int64 {
	return ev.clock.Tick()
}

func (ev *Evaluator) nextDeadline(work *state) (time.Duration, bool) {
	var (
		best  time.Duration
		found bool
	)
	for _, ix := range ev.periodic {
		if !found || work.next[ix] < best {
			best = work.next[ix]
			found = true
		}
	}
	return best, found
}

// deadlineStep evaluates every periodic output due at d.
func (ev *Evaluator) deadlineStep(work *state, d time.Duration) (ir.Frame, error) {
	frame := ir.Frame{Time: d}
	freshOut := make([]bool, len(ev.graph.Outputs))

	for _, ix := range ev.periodic {
		out := ev.graph.Outputs[ix]
		if work.next[ix] != d {
			continue
		}
		work.next[ix] += out.Period

		v, ok, err := ev.evalPeriodic(work, out, d)
		work.windows[ix] = window{}
		if err != nil {
			return frame, err
		}
		if !ok {
			continue
		}
		work.outputs[ix] = v
		work.fired[ix]++
		freshOut[ix] = true
		frame.Updates = append(frame.Updates, ir.Update{Output: ix, Value: v})
	}

	ev.observe(work, nil, freshOut, false)
	return frame, nil
}

// eventStep stores the event's inputs and evaluates event-driven outputs.
func (ev *Evaluator) eventStep(work *state, event []ir.Value, ts time.Duration) (ir.Frame, error) {
	frame := ir.Frame{Time: ts}
	freshIn := make([]bool, len(ev.graph.Inputs))
	freshOut := make([]bool, len(ev.graph.Outputs))

	for i, v := range event {
		if v == nil || ir.IsAbsent(v) {
			continue
		}
		cv, err := coerceInput(ev.graph.Inputs[i], v, ts)
		if err != nil {
			return frame, err
		}
		work.inputs[i] = cv
		freshIn[i] = true
	}

	for _, ix := range ev.order {
		out := ev.graph.Outputs[ix]
		if out.IsPeriodic() || !ready(work, out, freshIn, freshOut) {
			continue
		}

		var (
			v   ir.Value
			err error
		)
		if out.Op == "count" {
			v = ir.Int(work.fired[ix] + 1)
		} else {
			v, err = apply(out, ev.args(work, out), ts)
		}
		if err != nil {
			return frame, err
		}

		work.outputs[ix] = v
		work.fired[ix]++
		freshOut[ix] = true
		frame.Updates = append(frame.Updates, ir.Update{Output: ix, Value: v})
	}

	ev.observe(work, freshIn, freshOut, true)
	return frame, nil
}

// ready reports whether an event-driven output fires this tick.
//
// Without hold every argument must be fresh. With hold at least one argument
// must be fresh and every argument must have a value. Outputs without
// arguments fire on every event.
func ready(work *state, out ir.OutputStream, freshIn, freshOut []bool) bool {
	if len(out.Args) == 0 {
		return true
	}
	anyFresh := false
	for _, ref := range out.Args {
		fresh := isFresh(ref, freshIn, freshOut)
		if fresh {
			anyFresh = true
			continue
		}
		if !out.Hold || ir.IsAbsent(lastValue(work, ref)) {
			return false
		}
	}
	return anyFresh
}

func (ev *Evaluator) evalPeriodic(work *state, out ir.OutputStream, d time.Duration) (ir.Value, bool, error) {
	w := work.windows[out.Index]
	switch out.Op {
	case "count":
		if len(out.Args) == 0 {
			return ir.Int(w.events), true, nil
		}
		return ir.Int(w.steps), true, nil
	case "mean":
		if w.n == 0 {
			return nil, false, nil
		}
		v, err := finite(out, ir.Float(w.sum/float64(w.n)), d)
		return v, err == nil, err
	}

	args := ev.args(work, out)
	for _, a := range args {
		if ir.IsAbsent(a) {
			return nil, false, nil
		}
	}
	v, err := apply(out, args, d)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// observe feeds the step's fresh values into periodic aggregation windows.
func (ev *Evaluator) observe(work *state, freshIn, freshOut []bool, isEvent bool) {
	for _, ix := range ev.periodic {
		out := ev.graph.Outputs[ix]
		if out.Op != "count" && out.Op != "mean" {
			continue
		}
		w := &work.windows[ix]
		if isEvent {
			w.events++
		}
		stepFresh := false
		for _, ref := range out.Args {
			if !isFresh(ref, freshIn, freshOut) {
				continue
			}
			stepFresh = true
			if f, err := toFloat(lastValue(work, ref)); err == nil {
				w.n++
				w.sum += f
			}
		}
		if stepFresh {
			w.steps++
		}
	}
}

func (ev *Evaluator) args(work *state, out ir.OutputStream) []ir.Value {
	vals := make([]ir.Value, len(out.Args))
	for i, ref := range out.Args {
		vals[i] = lastValue(work, ref)
	}
	return vals
}

func lastValue(work *state, ref ir.StreamRef) ir.Value {
	if ref.Kind == ir.StreamInput {
		return work.inputs[ref.Index]
	}
	return work.outputs[ref.Index]
}

func isFresh(ref ir.StreamRef, freshIn, freshOut []bool) bool {
	if ref.Kind == ir.StreamInput {
		return freshIn != nil && freshIn[ref.Index]
	}
	return freshOut != nil && freshOut[ref.Index]
}
