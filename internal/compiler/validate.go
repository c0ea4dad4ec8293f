package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/monbridge/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrEmptyGraph = "E100" // no outputs

	// Output stream errors (E101-E109)
	ErrUnknownOp        = "E101" // operator not recognised
	ErrArity            = "E102" // wrong number of arguments
	ErrConstValue       = "E103" // const without value / value without const
	ErrInvalidType      = "E104" // declared type not recognised
	ErrDuplicateName    = "E105" // duplicate stream name
	ErrNonBoolOperand   = "E106" // logic op over non-bool stream
	ErrPeriodicArgs     = "E107" // hold combined with period
	ErrEmptyStreamName  = "E108" // blank stream name
	ErrDependencyCycle  = "E109" // outputs depend on each other
	ErrInvalidReference = "E110" // argument reference out of range
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Stream  string `json:"stream,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// opSpec describes an operator's arity and, when fixed, its result type.
type opSpec struct {
	minArgs int
	maxArgs int // -1 = unbounded
	result  ir.ValueType
	logic   bool // operands must be Bool
}

// operators is the reference engine's operator table.
var operators = map[string]opSpec{
	"add":   {minArgs: 1, maxArgs: -1, result: ir.TypeFloat64},
	"sub":   {minArgs: 2, maxArgs: 2, result: ir.TypeFloat64},
	"mul":   {minArgs: 1, maxArgs: -1, result: ir.TypeFloat64},
	"div":   {minArgs: 2, maxArgs: 2, result: ir.TypeFloat64},
	"mean":  {minArgs: 1, maxArgs: -1, result: ir.TypeFloat64},
	"min":   {minArgs: 1, maxArgs: -1},
	"max":   {minArgs: 1, maxArgs: -1},
	"neg":   {minArgs: 1, maxArgs: 1},
	"abs":   {minArgs: 1, maxArgs: 1},
	"gt":    {minArgs: 2, maxArgs: 2, result: ir.TypeBool},
	"lt":    {minArgs: 2, maxArgs: 2, result: ir.TypeBool},
	"ge":    {minArgs: 2, maxArgs: 2, result: ir.TypeBool},
	"le":    {minArgs: 2, maxArgs: 2, result: ir.TypeBool},
	"eq":    {minArgs: 2, maxArgs: 2, result: ir.TypeBool},
	"and":   {minArgs: 1, maxArgs: -1, result: ir.TypeBool, logic: true},
	"or":    {minArgs: 1, maxArgs: -1, result: ir.TypeBool, logic: true},
	"not":   {minArgs: 1, maxArgs: 1, result: ir.TypeBool, logic: true},
	"count": {minArgs: 0, maxArgs: -1, result: ir.TypeInt64},
	"last":  {minArgs: 1, maxArgs: 1},
	"const": {minArgs: 0, maxArgs: 0},
}

// Operators returns the names of all supported operators.
func Operators() []string {
	names := make([]string, 0, len(operators))
	for name := range operators {
		names = append(names, name)
	}
	return names
}

// Validate checks a compiled StreamGraph against the reference engine's rules.
// Returns all errors found (does not fail-fast).
func Validate(g *ir.StreamGraph) []ValidationError {
	var errs []ValidationError

	if g == nil || len(g.Outputs) == 0 {
		return []ValidationError{{
			Field:   "output",
			Message: "at least one output stream is required",
			Code:    ErrEmptyGraph,
		}}
	}

	seen := make(map[string]bool)
	for _, in := range g.Inputs {
		if strings.TrimSpace(in.Name) == "" {
			errs = append(errs, ValidationError{Field: "input", Message: "input name must be non-empty", Code: ErrEmptyStreamName})
		}
		if seen[in.Name] {
			errs = append(errs, ValidationError{Stream: in.Name, Field: "input." + in.Name, Message: "duplicate stream name", Code: ErrDuplicateName})
		}
		seen[in.Name] = true
	}
	for _, out := range g.Outputs {
		if seen[out.Name] {
			errs = append(errs, ValidationError{Stream: out.Name, Field: "output." + out.Name, Message: "duplicate stream name", Code: ErrDuplicateName})
		}
		seen[out.Name] = true
		errs = append(errs, validateOutput(g, out)...)
	}

	return errs
}

func validateOutput(g *ir.StreamGraph, out ir.OutputStream) []ValidationError {
	var errs []ValidationError
	field := "output." + out.Name

	spec, ok := operators[out.Op]
	if !ok {
		return []ValidationError{{
			Stream:  out.Name,
			Field:   field + ".op",
			Message: fmt.Sprintf("unknown operator %q", out.Op),
			Code:    ErrUnknownOp,
		}}
	}

	n := len(out.Args)
	minArgs := spec.minArgs
	if out.Op == "count" && !out.IsPeriodic() {
		// An event-driven count needs something to count.
		minArgs = 1
	}
	if n < minArgs || (spec.maxArgs >= 0 && n > spec.maxArgs) {
		errs = append(errs, ValidationError{
			Stream:  out.Name,
			Field:   field + ".args",
			Message: fmt.Sprintf("%s takes %s, got %d", out.Op, arityString(minArgs, spec.maxArgs), n),
			Code:    ErrArity,
		})
	}

	if out.Op == "const" && out.Const == nil {
		errs = append(errs, ValidationError{Stream: out.Name, Field: field + ".value", Message: "const requires a value", Code: ErrConstValue})
	}
	if out.Op != "const" && out.Const != nil {
		errs = append(errs, ValidationError{Stream: out.Name, Field: field + ".value", Message: "value is only allowed with op const", Code: ErrConstValue})
	}

	switch out.Type {
	case ir.TypeFloat64, ir.TypeInt64, ir.TypeBool, ir.TypeString:
	default:
		errs = append(errs, ValidationError{Stream: out.Name, Field: field + ".type", Message: fmt.Sprintf("unsupported type %q", out.Type), Code: ErrInvalidType})
	}

	for _, arg := range out.Args {
		if !refInRange(g, arg) {
			errs = append(errs, ValidationError{Stream: out.Name, Field: field + ".args", Message: fmt.Sprintf("reference %s out of range", arg), Code: ErrInvalidReference})
			continue
		}
		if spec.logic && streamType(g, arg) != ir.TypeBool {
			errs = append(errs, ValidationError{
				Stream:  out.Name,
				Field:   field + ".args",
				Message: fmt.Sprintf("%s requires Bool operands, %s is %s", out.Op, streamName(g, arg), streamType(g, arg)),
				Code:    ErrNonBoolOperand,
			})
		}
	}

	if out.IsPeriodic() && out.Hold {
		errs = append(errs, ValidationError{
			Stream:  out.Name,
			Field:   field + ".hold",
			Message: "periodic outputs always sample held values; hold is not allowed",
			Code:    ErrPeriodicArgs,
		})
	}

	return errs
}

func arityString(minArgs, maxArgs int) string {
	switch {
	case maxArgs < 0:
		return fmt.Sprintf("at least %d argument(s)", minArgs)
	case minArgs == maxArgs:
		return fmt.Sprintf("exactly %d argument(s)", minArgs)
	default:
		return fmt.Sprintf("%d to %d arguments", minArgs, maxArgs)
	}
}

func refInRange(g *ir.StreamGraph, ref ir.StreamRef) bool {
	if ref.Kind == ir.StreamInput {
		return ref.Index >= 0 && ref.Index < len(g.Inputs)
	}
	return ref.Index >= 0 && ref.Index < len(g.Outputs)
}

func streamType(g *ir.StreamGraph, ref ir.StreamRef) ir.ValueType {
	if ref.Kind == ir.StreamInput {
		return g.Inputs[ref.Index].Type
	}
	return g.Outputs[ref.Index].Type
}

func streamName(g *ir.StreamGraph, ref ir.StreamRef) string {
	if ref.Kind == ir.StreamInput {
		return g.Inputs[ref.Index].Name
	}
	return g.Outputs[ref.Index].Name
}
