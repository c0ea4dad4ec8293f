package ir

import "time"

// Update is one output's new value within a Frame.
type Update struct {
	Output int   // position in StreamGraph.Outputs
	Value  Value // never Absent
}

// Frame is the set of updates produced by one logical evaluation step.
// Updates appear in evaluation order, which is unrelated to any caller's
// preferred output order.
type Frame struct {
	Time    time.Duration
	Updates []Update
}

// Lookup returns the value the frame assigns to output position ix.
func (f Frame) Lookup(ix int) (Value, bool) {
	for _, u := range f.Updates {
		if u.Output == ix {
			return u.Value, true
		}
	}
	return nil, false
}
