package compiler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/monbridge/internal/ir"
)

const speedSpec = `
input: {
	speed: "Float64"
	brake: "Bool"
}
output: {
	limit: {op: "const", value: 30}
	fast:  {op: "gt", args: ["speed", "limit"]}
	alarm: {op: "and", args: ["fast", "brake"]}
	avg:   {op: "mean", args: ["speed"], period: 1}
}
`

func TestCompileBasic(t *testing.T) {
	g, err := Compile(speedSpec)
	require.NoError(t, err)

	assert.Equal(t, []string{"speed", "brake"}, g.InputNames())
	assert.Equal(t, []string{"limit", "fast", "alarm", "avg"}, g.OutputNames())
	assert.Equal(t, 2, g.NumInputs())
	assert.NotEmpty(t, g.SpecHash)

	fast := g.Outputs[1]
	assert.Equal(t, "gt", fast.Op)
	assert.Equal(t, []ir.StreamRef{ir.In(0), ir.Out(0)}, fast.Args)
	assert.Equal(t, ir.TypeBool, fast.Type)

	assert.Equal(t, ir.Int(30), g.Outputs[0].Const)
	assert.Equal(t, ir.TypeInt64, g.Outputs[0].Type)

	avg := g.Outputs[3]
	assert.True(t, avg.IsPeriodic())
	assert.Equal(t, time.Second, avg.Period)
	assert.Equal(t, ir.TypeFloat64, avg.Type)
}

func TestCompileOrderIsTopological(t *testing.T) {
	g, err := Compile(`
input: {a: "Float64"}
output: {
	c: {op: "add", args: ["b", "a"]}
	b: {op: "neg", args: ["a"]}
	d: {op: "abs", args: ["a"]}
}
`)
	require.NoError(t, err)

	// b must precede c; remaining ties follow declaration order.
	assert.Equal(t, []int{1, 0, 2}, g.Order)
}

func TestCompileDeterministicHash(t *testing.T) {
	g1, err := Compile(speedSpec)
	require.NoError(t, err)
	g2, err := Compile(speedSpec)
	require.NoError(t, err)

	assert.Equal(t, g1.SpecHash, g2.SpecHash)
	assert.Equal(t, g1.Order, g2.Order)
}

func TestCompileInferredTypes(t *testing.T) {
	g, err := Compile(`
input: {n: "Int64", f: "Bool"}
output: {
	last_n: {op: "last", args: ["n"]}
	neg_n:  {op: "neg", args: ["last_n"]}
	not_f:  {op: "not", args: ["f"]}
	cnt:    {op: "count", args: ["n"]}
	forced: {op: "add", args: ["n"], type: "Int64"}
}
`)
	require.NoError(t, err)

	types := make([]ir.ValueType, len(g.Outputs))
	for i, o := range g.Outputs {
		types[i] = o.Type
	}
	assert.Equal(t, []ir.ValueType{ir.TypeInt64, ir.TypeInt64, ir.TypeBool, ir.TypeInt64, ir.TypeInt64}, types)
}

func TestCompileHoldFlag(t *testing.T) {
	g, err := Compile(`
input: {a: "Float64", b: "Float64"}
output: {
	s: {op: "add", args: ["a", "b"], hold: true}
}
`)
	require.NoError(t, err)
	assert.True(t, g.Outputs[0].Hold)
	assert.False(t, g.Outputs[0].IsPeriodic())
}

func TestCompileNoInputs(t *testing.T) {
	g, err := Compile(`
output: {
	tick: {op: "count", period: 0.5}
}
`)
	require.NoError(t, err)
	assert.Equal(t, 0, g.NumInputs())
	assert.Equal(t, 500*time.Millisecond, g.Outputs[0].Period)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want string
	}{
		{
			name: "invalid cue",
			spec: `output: {`,
			want: "cue",
		},
		{
			name: "no outputs",
			spec: `input: {a: "Float64"}`,
			want: "at least one output",
		},
		{
			name: "bad input type",
			spec: `input: {a: "Complex"}
output: {x: {op: "last", args: ["a"]}}`,
			want: "unsupported input type",
		},
		{
			name: "missing op",
			spec: `input: {a: "Float64"}
output: {x: {args: ["a"]}}`,
			want: "op is required",
		},
		{
			name: "unknown arg",
			spec: `input: {a: "Float64"}
output: {x: {op: "neg", args: ["nope"]}}`,
			want: `unknown stream "nope"`,
		},
		{
			name: "shadowed input",
			spec: `input: {a: "Float64"}
output: {a: {op: "neg", args: ["a"]}}`,
			want: "shadows",
		},
		{
			name: "negative period",
			spec: `output: {x: {op: "count", period: -1}}`,
			want: "period must be a positive",
		},
		{
			name: "unknown op",
			spec: `input: {a: "Float64"}
output: {x: {op: "frobnicate", args: ["a"]}}`,
			want: "unknown operator",
		},
		{
			name: "arity",
			spec: `input: {a: "Float64"}
output: {x: {op: "sub", args: ["a"]}}`,
			want: "exactly 2",
		},
		{
			name: "const without value",
			spec: `output: {x: {op: "const"}}`,
			want: "const requires a value",
		},
		{
			name: "logic over float",
			spec: `input: {a: "Float64"}
output: {x: {op: "not", args: ["a"]}}`,
			want: "requires Bool operands",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.spec)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCompileErrorHasPosition(t *testing.T) {
	_, err := Compile(`input: {a: "Float64"}
output: {
	x: {op: "sub", args: ["a"]}
}`)
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.True(t, ce.Pos.IsValid())
	assert.Equal(t, "output.x.args", ce.Field)
}

func TestCompileCycle(t *testing.T) {
	_, err := Compile(`
input: {a: "Float64"}
output: {
	x: {op: "add", args: ["a", "y"]}
	y: {op: "neg", args: ["x"]}
}
`)
	require.Error(t, err)

	var ce *CycleError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, []string{"x", "y", "x"}, ce.Path)
	assert.Contains(t, err.Error(), ErrDependencyCycle)
}
