package ir

import (
	"fmt"
	"time"
)

// ValueType is the declared type of a stream.
type ValueType string

const (
	TypeFloat64 ValueType = "Float64"
	TypeInt64   ValueType = "Int64"
	TypeBool    ValueType = "Bool"
	TypeString  ValueType = "String"
)

// ValidInputTypes lists the types an input stream may declare.
var ValidInputTypes = []ValueType{TypeFloat64, TypeInt64, TypeBool}

// StreamKind distinguishes the two namespaces a StreamRef can point into.
type StreamKind int

const (
	// StreamInput refers to StreamGraph.Inputs.
	StreamInput StreamKind = iota + 1
	// StreamOutput refers to StreamGraph.Outputs.
	StreamOutput
)

// StreamRef identifies a stream by kind and position.
type StreamRef struct {
	Kind  StreamKind `json:"kind"`
	Index int        `json:"index"`
}

// In returns a reference to input position i.
func In(i int) StreamRef { return StreamRef{Kind: StreamInput, Index: i} }

// Out returns a reference to output position i.
func Out(i int) StreamRef { return StreamRef{Kind: StreamOutput, Index: i} }

func (r StreamRef) String() string {
	if r.Kind == StreamInput {
		return fmt.Sprintf("in#%d", r.Index)
	}
	return fmt.Sprintf("out#%d", r.Index)
}

// InputStream is one declared external data feed.
type InputStream struct {
	Name string    `json:"name"`
	Type ValueType `json:"type"`
}

// OutputStream is one derived stream. Index is its position in
// StreamGraph.Outputs and is the identity used in every Frame.
type OutputStream struct {
	Name  string      `json:"name"`
	Index int         `json:"index"`
	Type  ValueType   `json:"type"`
	Op    string      `json:"op"`
	Args  []StreamRef `json:"args,omitempty"`
	Const Value       `json:"-"`

	// Hold reads every argument with last-value semantics.
	Hold bool `json:"hold,omitempty"`

	// Period is zero for event-driven outputs.
	Period time.Duration `json:"period,omitempty"`
}

// IsPeriodic reports whether the output is evaluated on a fixed period.
func (o OutputStream) IsPeriodic() bool { return o.Period > 0 }

// StreamGraph is the parsed form of a specification.
//
// Order is the evaluation order of outputs (topological over event-driven
// dependencies); it is a permutation of output positions.
type StreamGraph struct {
	Inputs   []InputStream  `json:"inputs"`
	Outputs  []OutputStream `json:"outputs"`
	Order    []int          `json:"order"`
	SpecHash string         `json:"spec_hash"`
}

// NumInputs returns the number of declared inputs.
func (g *StreamGraph) NumInputs() int { return len(g.Inputs) }

// OutputIndex returns the position of the named output, or false.
func (g *StreamGraph) OutputIndex(name string) (int, bool) {
	for i, o := range g.Outputs {
		if o.Name == name {
			return i, true
		}
	}
	return 0, false
}

// InputIndex returns the position of the named input, or false.
func (g *StreamGraph) InputIndex(name string) (int, bool) {
	for i, in := range g.Inputs {
		if in.Name == name {
			return i, true
		}
	}
	return 0, false
}

// OutputNames returns output names in position order.
func (g *StreamGraph) OutputNames() []string {
	names := make([]string, len(g.Outputs))
	for i, o := range g.Outputs {
		names[i] = o.Name
	}
	return names
}

// InputNames returns input names in position order.
func (g *StreamGraph) InputNames() []string {
	names := make([]string, len(g.Inputs))
	for i, in := range g.Inputs {
		names[i] = in.Name
	}
	return names
}
