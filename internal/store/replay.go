package store

import (
	"context"
	"fmt"
	"math"

	"github.com/roach88/monbridge/internal/bridge"
	"github.com/roach88/monbridge/internal/ir"
)

// Recorder appends a session's calls with consecutive seq numbers.
//
// Recorder is not safe for concurrent use; one session has one producer.
type Recorder struct {
	store     *Store
	sessionID string
	seq       int64
}

// NewRecorder returns a recorder for an existing session. Seq numbers
// start at 1.
func (s *Store) NewRecorder(sessionID string) *Recorder {
	return &Recorder{store: s, sessionID: sessionID}
}

// Record stores c together with the result it produced.
func (r *Recorder) Record(ctx context.Context, c Call, res bridge.Result) error {
	r.seq++
	c.SessionID = r.sessionID
	c.Seq = r.seq
	c.Result = res.Values
	c.Status = res.Status.String()
	return r.store.WriteCall(ctx, c)
}

// Seq returns the seq of the last recorded call.
func (r *Recorder) Seq() int64 {
	return r.seq
}

// Apply replays one recorded call against m.
func Apply(m *bridge.Monitor, c Call) (bridge.Result, error) {
	switch c.Mode {
	case bridge.ModeSingle:
		return m.IngestSingle(c.Index, c.Value, c.Timestamp)
	case bridge.ModeTotal:
		return m.IngestTotal(c.Values)
	case bridge.ModePartial:
		return m.IngestPartial(c.Values, c.Active)
	default:
		return bridge.Result{Values: []float64{}, Status: bridge.StatusMarshalFailed},
			fmt.Errorf("apply call %d: unknown mode %q", c.Seq, c.Mode)
	}
}

// ReplayResult compares a recorded session with a fresh re-run.
type ReplayResult struct {
	SessionID      string
	Calls          int
	RecordedDigest string
	ReplayedDigest string
	FirstMismatch  int64 // seq of the first differing call, 0 if none
}

// Match reports whether the replay reproduced every verdict array.
func (r ReplayResult) Match() bool {
	return r.FirstMismatch == 0 && r.RecordedDigest == r.ReplayedDigest
}

// Replay rebuilds a session's monitor from its recorded spec and output
// selection, re-sends every call in seq order and compares verdict arrays.
//
// The recorded frame policy always applies, whatever opts say.
func (s *Store) Replay(ctx context.Context, engine ir.Engine, sessionID string, opts ...bridge.Option) (ReplayResult, error) {
	result := ReplayResult{SessionID: sessionID}

	sess, err := s.ReadSession(ctx, sessionID)
	if err != nil {
		return result, fmt.Errorf("replay: %w", err)
	}
	calls, err := s.ReadCalls(ctx, sessionID)
	if err != nil {
		return result, fmt.Errorf("replay: %w", err)
	}
	result.Calls = len(calls)

	policy, err := bridge.ParseFramePolicy(sess.FramePolicy)
	if err != nil {
		return result, fmt.Errorf("replay: %w", err)
	}
	opts = append(opts, bridge.WithFramePolicy(policy))

	mon, err := bridge.NewMonitorWithOutputs(engine, sess.Spec, sess.Outputs, opts...)
	if err != nil {
		return result, fmt.Errorf("replay: %w", err)
	}
	defer mon.Close()

	recorded := make([][]float64, len(calls))
	replayed := make([][]float64, len(calls))
	for i, c := range calls {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		res, _ := Apply(mon, c)
		recorded[i] = c.Result
		replayed[i] = res.Values
		if result.FirstMismatch == 0 && (!sameValues(c.Result, res.Values) || c.Status != res.Status.String()) {
			result.FirstMismatch = c.Seq
		}
	}

	if result.RecordedDigest, err = ir.VerdictDigest(recorded); err != nil {
		return result, fmt.Errorf("replay: %w", err)
	}
	if result.ReplayedDigest, err = ir.VerdictDigest(replayed); err != nil {
		return result, fmt.Errorf("replay: %w", err)
	}
	return result, nil
}

// sameValues compares verdict arrays, treating NaN as equal to NaN.
func sameValues(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] == b[i] || (math.IsNaN(a[i]) && math.IsNaN(b[i])) {
			continue
		}
		return false
	}
	return true
}
