package bridge

import (
	"fmt"
	"math"
	"time"

	"github.com/roach88/monbridge/internal/ir"
)

// maxSeconds is the largest whole-second timestamp a time.Duration holds.
const maxSeconds = float64(math.MaxInt64 / int64(time.Second))

// SingleEvent builds an event where only input index carries a value.
func SingleEvent(numInputs, index int, value, ts float64) ([]ir.Value, time.Duration, error) {
	if index < 0 || index >= numInputs {
		return nil, 0, &MarshalError{
			Mode:   ModeSingle,
			Reason: fmt.Sprintf("input index %d out of range [0, %d)", index, numInputs),
		}
	}
	t, err := floorTimestamp(ModeSingle, ts)
	if err != nil {
		return nil, 0, err
	}
	v, err := ScalarToTagged(value)
	if err != nil {
		return nil, 0, &MarshalError{Mode: ModeSingle, Reason: fmt.Sprintf("input %d", index), Err: err}
	}

	event := absentEvent(numInputs)
	event[index] = v
	return event, t, nil
}

// TotalEvent builds an event from a dense buffer of numInputs values followed
// by the timestamp. Every input is present.
func TotalEvent(numInputs int, buf []float64) ([]ir.Value, time.Duration, error) {
	if len(buf) != numInputs+1 {
		return nil, 0, &MarshalError{
			Mode:   ModeTotal,
			Reason: fmt.Sprintf("buffer has %d values, want %d", len(buf), numInputs+1),
		}
	}
	t, err := floorTimestamp(ModeTotal, buf[numInputs])
	if err != nil {
		return nil, 0, err
	}

	event := make([]ir.Value, numInputs)
	for i, x := range buf[:numInputs] {
		v, err := ScalarToTagged(x)
		if err != nil {
			return nil, 0, &MarshalError{Mode: ModeTotal, Reason: fmt.Sprintf("input %d", i), Err: err}
		}
		event[i] = v
	}
	return event, t, nil
}

// PartialEvent builds an event from a dense value buffer and an activity mask.
//
// values holds numInputs values followed by the timestamp. active has either
// the same length with its last flag true, or one fewer entry with the
// timestamp implicitly active. Inactive slots are Absent and their values are
// never read.
func PartialEvent(numInputs int, values []float64, active []bool) ([]ir.Value, time.Duration, error) {
	if len(values) != numInputs+1 {
		return nil, 0, &MarshalError{
			Mode:   ModePartial,
			Reason: fmt.Sprintf("value buffer has %d values, want %d", len(values), numInputs+1),
		}
	}
	switch len(active) {
	case numInputs:
	case numInputs + 1:
		if !active[numInputs] {
			return nil, 0, &MarshalError{Mode: ModePartial, Reason: "timestamp slot is marked inactive"}
		}
	default:
		return nil, 0, &MarshalError{
			Mode:   ModePartial,
			Reason: fmt.Sprintf("activity buffer has %d flags, want %d or %d", len(active), numInputs, numInputs+1),
		}
	}

	t, err := floorTimestamp(ModePartial, values[numInputs])
	if err != nil {
		return nil, 0, err
	}

	event := absentEvent(numInputs)
	for i := 0; i < numInputs; i++ {
		if !active[i] {
			continue
		}
		v, err := ScalarToTagged(values[i])
		if err != nil {
			return nil, 0, &MarshalError{Mode: ModePartial, Reason: fmt.Sprintf("input %d", i), Err: err}
		}
		event[i] = v
	}
	return event, t, nil
}

func absentEvent(n int) []ir.Value {
	event := make([]ir.Value, n)
	for i := range event {
		event[i] = ir.Absent{}
	}
	return event
}

// floorTimestamp truncates a host timestamp in seconds to whole seconds.
func floorTimestamp(mode MarshalMode, ts float64) (time.Duration, error) {
	switch {
	case math.IsNaN(ts):
		return 0, &MarshalError{Mode: mode, Reason: "timestamp", Err: ErrNaN}
	case math.IsInf(ts, 0) || ts > maxSeconds:
		return 0, &MarshalError{Mode: mode, Reason: fmt.Sprintf("timestamp %v out of range", ts)}
	case ts < 0:
		return 0, &MarshalError{Mode: mode, Reason: fmt.Sprintf("timestamp %v is negative", ts)}
	}
	return time.Duration(math.Floor(ts)) * time.Second, nil
}
