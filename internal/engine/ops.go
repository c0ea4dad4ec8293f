package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/roach88/monbridge/internal/ir"
)

// coerceInput converts a host value to the input's declared type.
// Int64 truncates toward zero; Bool is true for any non-zero number.
func coerceInput(in ir.InputStream, v ir.Value, ts time.Duration) (ir.Value, error) {
	f, err := toFloat(v)
	if err != nil || math.IsNaN(f) {
		return nil, &RuntimeError{
			Code:    ErrCodeInvalidOperand,
			Message: fmt.Sprintf("input %s: cannot use %s value %s", in.Name, ir.Kind(v), ir.FormatValue(v)),
			Time:    ts,
		}
	}

	switch in.Type {
	case ir.TypeInt64:
		if math.IsInf(f, 0) {
			return nil, &RuntimeError{
				Code:    ErrCodeInvalidOperand,
				Message: fmt.Sprintf("input %s: %v does not fit Int64", in.Name, f),
				Time:    ts,
			}
		}
		return ir.Int(int64(f)), nil
	case ir.TypeBool:
		return ir.Bool(f != 0), nil
	default:
		return ir.Float(f), nil
	}
}

// apply evaluates a pointwise operator over argument values.
// Callers guarantee no argument is Absent.
func apply(out ir.OutputStream, args []ir.Value, ts time.Duration) (ir.Value, error) {
	fail := func(format string, a ...any) error {
		return &RuntimeError{
			Code:    ErrCodeInvalidOperand,
			Message: fmt.Sprintf(format, a...),
			Output:  out.Name,
			Time:    ts,
		}
	}

	switch out.Op {
	case "const":
		return out.Const, nil

	case "last":
		return cast(out, args[0], ts)

	case "and", "or", "not":
		bs := make([]bool, len(args))
		for i, a := range args {
			b, ok := a.(ir.Bool)
			if !ok {
				return nil, fail("%s: operand %d is %s, want Bool", out.Op, i, ir.Kind(a))
			}
			bs[i] = bool(b)
		}
		return ir.Bool(logic(out.Op, bs)), nil

	case "eq":
		if sa, ok := args[0].(ir.String); ok {
			sb, ok := args[1].(ir.String)
			if !ok {
				return nil, fail("eq: cannot compare String with %s", ir.Kind(args[1]))
			}
			return ir.Bool(sa == sb), nil
		}
	}

	fs := make([]float64, len(args))
	for i, a := range args {
		f, err := toFloat(a)
		if err != nil {
			return nil, fail("%s: operand %d: %v", out.Op, i, err)
		}
		fs[i] = f
	}

	var result ir.Value
	switch out.Op {
	case "add":
		sum := 0.0
		for _, f := range fs {
			sum += f
		}
		result = ir.Float(sum)
	case "mul":
		prod := 1.0
		for _, f := range fs {
			prod *= f
		}
		result = ir.Float(prod)
	case "sub":
		result = ir.Float(fs[0] - fs[1])
	case "div":
		result = ir.Float(fs[0] / fs[1])
	case "mean":
		sum := 0.0
		for _, f := range fs {
			sum += f
		}
		result = ir.Float(sum / float64(len(fs)))
	case "min", "max":
		best := 0
		for i := 1; i < len(fs); i++ {
			if (out.Op == "min" && fs[i] < fs[best]) || (out.Op == "max" && fs[i] > fs[best]) {
				best = i
			}
		}
		result = args[best]
	case "neg":
		result = ir.Float(-fs[0])
	case "abs":
		result = ir.Float(math.Abs(fs[0]))
	case "gt":
		result = ir.Bool(fs[0] > fs[1])
	case "lt":
		result = ir.Bool(fs[0] < fs[1])
	case "ge":
		result = ir.Bool(fs[0] >= fs[1])
	case "le":
		result = ir.Bool(fs[0] <= fs[1])
	case "eq":
		result = ir.Bool(fs[0] == fs[1])
	default:
		return nil, fail("unknown operator %q", out.Op)
	}

	return cast(out, result, ts)
}

func logic(op string, bs []bool) bool {
	switch op {
	case "not":
		return !bs[0]
	case "and":
		for _, b := range bs {
			if !b {
				return false
			}
		}
		return true
	default:
		for _, b := range bs {
			if b {
				return true
			}
		}
		return false
	}
}

// cast converts v to the output's declared type and rejects NaN.
func cast(out ir.OutputStream, v ir.Value, ts time.Duration) (ir.Value, error) {
	switch out.Type {
	case ir.TypeString:
		if s, ok := v.(ir.String); ok {
			return s, nil
		}
		return ir.String(ir.FormatValue(v)), nil
	case ir.TypeBool:
		if b, ok := v.(ir.Bool); ok {
			return b, nil
		}
	}

	if _, ok := v.(ir.String); ok {
		return v, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return nil, &RuntimeError{Code: ErrCodeInvalidOperand, Message: err.Error(), Output: out.Name, Time: ts}
	}

	switch out.Type {
	case ir.TypeInt64:
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, &RuntimeError{
				Code:    ErrCodeNaNResult,
				Message: fmt.Sprintf("result %v does not fit Int64", f),
				Output:  out.Name,
				Time:    ts,
			}
		}
		return ir.Int(int64(f)), nil
	case ir.TypeBool:
		return ir.Bool(f != 0), nil
	default:
		return finite(out, ir.Float(f), ts)
	}
}

// finite rejects NaN results.
func finite(out ir.OutputStream, v ir.Float, ts time.Duration) (ir.Value, error) {
	if math.IsNaN(float64(v)) {
		return nil, &RuntimeError{
			Code:    ErrCodeNaNResult,
			Message: "result is NaN",
			Output:  out.Name,
			Time:    ts,
		}
	}
	return v, nil
}

// toFloat reads a numeric view of v: Float and Int as-is, Bool as 1 or 0.
func toFloat(v ir.Value) (float64, error) {
	switch x := v.(type) {
	case ir.Float:
		return float64(x), nil
	case ir.Int:
		return float64(x), nil
	case ir.Bool:
		if x {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("%s value is not numeric", ir.Kind(v))
	}
}
