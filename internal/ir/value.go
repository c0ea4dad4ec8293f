package ir

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrNaN is returned when a NaN is offered where a Float is required.
// The evaluator's value model forbids NaN floats.
var ErrNaN = errors.New("NaN is not a valid float value")

// Value is a sealed interface representing the evaluator's tagged values.
// Only Absent, Float, Int, Bool, String and Tuple implement this.
type Value interface {
	streamValue() // Sealed - only these types implement it
}

// Absent marks an event slot that carries no new value this tick.
// It is a distinct third state: never a float, never coerced to 0.0.
type Absent struct{}

func (Absent) streamValue() {}

// Float is a non-NaN 64-bit floating point value.
// Construct through NewFloat when the source may be NaN.
type Float float64

func (Float) streamValue() {}

// Int is a signed 64-bit integer value.
type Int int64

func (Int) streamValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) streamValue() {}

// String is a string value.
type String string

func (String) streamValue() {}

// Tuple is an ordered, fixed-size group of values.
type Tuple []Value

func (Tuple) streamValue() {}

// NewFloat wraps f as a Float, rejecting NaN.
func NewFloat(f float64) (Float, error) {
	if math.IsNaN(f) {
		return 0, ErrNaN
	}
	return Float(f), nil
}

// MustFloat is like NewFloat but panics on NaN.
// Use only in tests or when the input is known to be valid.
func MustFloat(f float64) Float {
	v, err := NewFloat(f)
	if err != nil {
		panic(err)
	}
	return v
}

// IsAbsent reports whether v is nil or Absent.
func IsAbsent(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Absent)
	return ok
}

// Kind returns a short lowercase name for the value's variant.
func Kind(v Value) string {
	switch v.(type) {
	case nil, Absent:
		return "absent"
	case Float:
		return "float"
	case Int:
		return "int"
	case Bool:
		return "bool"
	case String:
		return "string"
	case Tuple:
		return "tuple"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// FormatValue renders v for human-readable output (CLI, logs).
func FormatValue(v Value) string {
	switch val := v.(type) {
	case nil, Absent:
		return "-"
	case Float:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Bool:
		return strconv.FormatBool(bool(val))
	case String:
		return strconv.Quote(string(val))
	case Tuple:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = FormatValue(elem)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// MarshalValue marshals a Value to JSON bytes.
// Absent becomes null; infinities are rejected because JSON cannot carry them.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Absent:
		return []byte("null"), nil
	case Float:
		if math.IsInf(float64(val), 0) {
			return nil, fmt.Errorf("cannot marshal infinite float %v", float64(val))
		}
		return json.Marshal(float64(val))
	case Int:
		return json.Marshal(int64(val))
	case Bool:
		return json.Marshal(bool(val))
	case String:
		return json.Marshal(string(val))
	case Tuple:
		var b strings.Builder
		b.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			elemBytes, err := MarshalValue(elem)
			if err != nil {
				return nil, fmt.Errorf("tuple[%d]: %w", i, err)
			}
			b.Write(elemBytes)
		}
		b.WriteByte(']')
		return []byte(b.String()), nil
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}
