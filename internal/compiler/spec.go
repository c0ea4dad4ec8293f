package compiler

import (
	"fmt"
	"math"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/monbridge/internal/ir"
)

// Compile parses CUE specification text into a StreamGraph.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The specification has two top-level structs whose field order is
// significant - it fixes input and output positions:
//
//	input: {
//		speed: "Float64"
//		brake: "Bool"
//	}
//	output: {
//		fast:   {op: "gt", args: ["speed", "limit"]}
//		limit:  {op: "const", value: 30}
//		dist:   {op: "mean", args: ["speed"], period: 1}
//	}
//
// Compile returns a *CompileError for the first structural problem found.
// Use Validate on the result for a full report of semantic problems.
func Compile(spec string) (*ir.StreamGraph, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(spec, cue.Filename("spec.cue"))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	g := &ir.StreamGraph{SpecHash: ir.SpecHash(spec)}

	inputs, err := parseInputs(v)
	if err != nil {
		return nil, err
	}
	g.Inputs = inputs

	defs, err := parseOutputs(v)
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return nil, &CompileError{
			Field:   "output",
			Message: "at least one output stream is required",
			Pos:     v.Pos(),
		}
	}

	if err := resolveOutputs(g, defs); err != nil {
		return nil, err
	}

	order, err := EvaluationOrder(g)
	if err != nil {
		return nil, err
	}
	g.Order = order

	if errs := Validate(g); len(errs) > 0 {
		return nil, &CompileError{
			Field:   errs[0].Field,
			Message: errs[0].Message,
			Pos:     defs[outputPosByName(defs, errs[0].Stream)].pos,
		}
	}

	return g, nil
}

// outputDef is an output stream before argument names are resolved.
type outputDef struct {
	name     string
	op       string
	args     []string
	typ      ir.ValueType
	constant ir.Value
	hold     bool
	period   time.Duration
	pos      token.Pos
}

func outputPosByName(defs []outputDef, name string) int {
	for i, d := range defs {
		if d.name == name {
			return i
		}
	}
	return 0
}

// parseInputs extracts the ordered input declarations.
func parseInputs(v cue.Value) ([]ir.InputStream, error) {
	var inputs []ir.InputStream

	inputVal := v.LookupPath(cue.ParsePath("input"))
	if !inputVal.Exists() {
		// A spec without inputs is legal: only periodic/const outputs.
		return inputs, nil
	}

	iter, err := inputVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Label()
		typStr, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   "input." + name,
				Message: "input type must be a string such as \"Float64\"",
				Pos:     iter.Value().Pos(),
			}
		}
		typ := ir.ValueType(typStr)
		if !isValidInputType(typ) {
			return nil, &CompileError{
				Field:   "input." + name,
				Message: fmt.Sprintf("unsupported input type %q (want one of %v)", typStr, ir.ValidInputTypes),
				Pos:     iter.Value().Pos(),
			}
		}
		inputs = append(inputs, ir.InputStream{Name: name, Type: typ})
	}

	return inputs, nil
}

func isValidInputType(t ir.ValueType) bool {
	for _, valid := range ir.ValidInputTypes {
		if t == valid {
			return true
		}
	}
	return false
}

// parseOutputs extracts the ordered output definitions.
func parseOutputs(v cue.Value) ([]outputDef, error) {
	var defs []outputDef

	outputVal := v.LookupPath(cue.ParsePath("output"))
	if !outputVal.Exists() {
		return defs, nil
	}

	iter, err := outputVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		def, err := parseOutput(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}

	return defs, nil
}

func parseOutput(name string, v cue.Value) (outputDef, error) {
	def := outputDef{name: name, pos: v.Pos()}
	field := "output." + name

	opVal := v.LookupPath(cue.ParsePath("op"))
	if !opVal.Exists() {
		return def, &CompileError{Field: field + ".op", Message: "op is required", Pos: v.Pos()}
	}
	op, err := opVal.String()
	if err != nil {
		return def, formatCUEError(err)
	}
	def.op = op

	argsVal := v.LookupPath(cue.ParsePath("args"))
	if argsVal.Exists() {
		argIter, err := argsVal.List()
		if err != nil {
			return def, formatCUEError(err)
		}
		for argIter.Next() {
			arg, err := argIter.Value().String()
			if err != nil {
				return def, &CompileError{
					Field:   field + ".args",
					Message: "arguments must be stream names",
					Pos:     argIter.Value().Pos(),
				}
			}
			def.args = append(def.args, arg)
		}
	}

	if holdVal := v.LookupPath(cue.ParsePath("hold")); holdVal.Exists() {
		hold, err := holdVal.Bool()
		if err != nil {
			return def, formatCUEError(err)
		}
		def.hold = hold
	}

	if periodVal := v.LookupPath(cue.ParsePath("period")); periodVal.Exists() {
		seconds, err := periodVal.Float64()
		if err != nil {
			return def, formatCUEError(err)
		}
		if seconds <= 0 || math.IsInf(seconds, 0) {
			return def, &CompileError{
				Field:   field + ".period",
				Message: fmt.Sprintf("period must be a positive number of seconds, got %v", seconds),
				Pos:     periodVal.Pos(),
			}
		}
		def.period = time.Duration(seconds * float64(time.Second))
	}

	if valueVal := v.LookupPath(cue.ParsePath("value")); valueVal.Exists() {
		constant, err := parseConst(valueVal)
		if err != nil {
			return def, &CompileError{Field: field + ".value", Message: err.Error(), Pos: valueVal.Pos()}
		}
		def.constant = constant
	}

	if typeVal := v.LookupPath(cue.ParsePath("type")); typeVal.Exists() {
		typStr, err := typeVal.String()
		if err != nil {
			return def, formatCUEError(err)
		}
		def.typ = ir.ValueType(typStr)
	}

	return def, nil
}

// parseConst converts a concrete CUE scalar into an ir.Value.
func parseConst(v cue.Value) (ir.Value, error) {
	switch v.IncompleteKind() {
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, err
		}
		return ir.Bool(b), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, err
		}
		return ir.Int(n), nil
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return nil, err
		}
		return ir.NewFloat(f)
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, err
		}
		return ir.String(s), nil
	default:
		return nil, fmt.Errorf("unsupported constant kind: %v", v.IncompleteKind())
	}
}

// resolveOutputs turns argument names into stream references and fills in
// inferred types.
func resolveOutputs(g *ir.StreamGraph, defs []outputDef) error {
	outputIx := make(map[string]int, len(defs))
	for i, def := range defs {
		if _, dup := outputIx[def.name]; dup {
			return &CompileError{Field: "output." + def.name, Message: "duplicate output name", Pos: def.pos}
		}
		if _, clash := g.InputIndex(def.name); clash {
			return &CompileError{
				Field:   "output." + def.name,
				Message: "output name shadows an input of the same name",
				Pos:     def.pos,
			}
		}
		outputIx[def.name] = i
	}

	g.Outputs = make([]ir.OutputStream, len(defs))
	for i, def := range defs {
		out := ir.OutputStream{
			Name:   def.name,
			Index:  i,
			Op:     def.op,
			Const:  def.constant,
			Hold:   def.hold,
			Period: def.period,
		}
		for _, arg := range def.args {
			if ix, ok := g.InputIndex(arg); ok {
				out.Args = append(out.Args, ir.In(ix))
				continue
			}
			if ix, ok := outputIx[arg]; ok {
				out.Args = append(out.Args, ir.Out(ix))
				continue
			}
			return &CompileError{
				Field:   "output." + def.name + ".args",
				Message: fmt.Sprintf("unknown stream %q", arg),
				Pos:     def.pos,
			}
		}
		g.Outputs[i] = out
	}

	// Types depend on argument types, so infer in a second pass that follows
	// output-to-output references.
	for i := range g.Outputs {
		if defs[i].typ != "" {
			g.Outputs[i].Type = defs[i].typ
			continue
		}
		g.Outputs[i].Type = inferType(g, i, map[int]bool{})
	}

	return nil
}

// inferType derives an output's type from its operator and arguments.
func inferType(g *ir.StreamGraph, ix int, visiting map[int]bool) ir.ValueType {
	out := g.Outputs[ix]
	if spec, ok := operators[out.Op]; ok && spec.result != "" {
		return spec.result
	}
	switch out.Op {
	case "const":
		return constType(out.Const)
	case "last", "neg", "abs", "min", "max":
		if len(out.Args) == 0 {
			return ir.TypeFloat64
		}
		return refType(g, out.Args[0], visiting)
	}
	return ir.TypeFloat64
}

func refType(g *ir.StreamGraph, ref ir.StreamRef, visiting map[int]bool) ir.ValueType {
	if ref.Kind == ir.StreamInput {
		return g.Inputs[ref.Index].Type
	}
	if visiting[ref.Index] {
		// Cycle; EvaluationOrder reports it.
		return ir.TypeFloat64
	}
	visiting[ref.Index] = true
	defer delete(visiting, ref.Index)
	return inferType(g, ref.Index, visiting)
}

func constType(v ir.Value) ir.ValueType {
	switch v.(type) {
	case ir.Bool:
		return ir.TypeBool
	case ir.Int:
		return ir.TypeInt64
	case ir.String:
		return ir.TypeString
	default:
		return ir.TypeFloat64
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return &CompileError{Field: "cue", Message: firstErr.Error()}
}
