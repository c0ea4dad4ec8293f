package bridge

import "github.com/roach88/monbridge/internal/ir"

// ScalarToTagged wraps a host float as an evaluator value.
//
// Infinities pass through. NaN is rejected with ErrNaN: the evaluator's
// value model has no NaN.
func ScalarToTagged(x float64) (ir.Value, error) {
	f, err := ir.NewFloat(x)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// TaggedToScalar narrows an evaluator value to a host float.
//
// Float is returned as is and Bool becomes 1 or 0. Every other kind,
// including Int, String, Tuple and Absent, becomes 0. The narrowing is
// lossy on purpose: host code depends on it.
func TaggedToScalar(v ir.Value) float64 {
	switch x := v.(type) {
	case ir.Float:
		return float64(x)
	case ir.Bool:
		if x {
			return 1
		}
		return 0
	default:
		return 0
	}
}
