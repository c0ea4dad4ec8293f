package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/monbridge/internal/ir"
)

func chainGraph(args ...[]ir.StreamRef) *ir.StreamGraph {
	g := &ir.StreamGraph{Inputs: []ir.InputStream{{Name: "a", Type: ir.TypeFloat64}}}
	for i, a := range args {
		g.Outputs = append(g.Outputs, ir.OutputStream{
			Name:  string(rune('p' + i)),
			Index: i,
			Op:    "add",
			Args:  a,
			Type:  ir.TypeFloat64,
		})
	}
	return g
}

// TestEvaluationOrder_NoDependencies keeps declaration order.
func TestEvaluationOrder_NoDependencies(t *testing.T) {
	g := chainGraph(
		[]ir.StreamRef{ir.In(0)},
		[]ir.StreamRef{ir.In(0)},
		[]ir.StreamRef{ir.In(0)},
	)
	order, err := EvaluationOrder(g)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, order)
}

// TestEvaluationOrder_ReverseChain tests p <- q <- r declared backwards.
func TestEvaluationOrder_ReverseChain(t *testing.T) {
	g := chainGraph(
		[]ir.StreamRef{ir.Out(1)},
		[]ir.StreamRef{ir.Out(2)},
		[]ir.StreamRef{ir.In(0)},
	)
	order, err := EvaluationOrder(g)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 0}, order)
}

// TestEvaluationOrder_Diamond tests a shared dependency read twice.
func TestEvaluationOrder_Diamond(t *testing.T) {
	g := chainGraph(
		[]ir.StreamRef{ir.Out(1), ir.Out(2)},
		[]ir.StreamRef{ir.Out(3)},
		[]ir.StreamRef{ir.Out(3), ir.Out(3)},
		[]ir.StreamRef{ir.In(0)},
	)
	order, err := EvaluationOrder(g)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 2, 0}, order)
}

// TestEvaluationOrder_SelfLoop tests that an output reading itself is rejected.
func TestEvaluationOrder_SelfLoop(t *testing.T) {
	g := chainGraph([]ir.StreamRef{ir.In(0), ir.Out(0)})

	_, err := EvaluationOrder(g)
	require.Error(t, err)
	var ce *CycleError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"p", "p"}, ce.Path)
}

// TestEvaluationOrder_ThreeNodeCycle tests a longer cycle path.
func TestEvaluationOrder_ThreeNodeCycle(t *testing.T) {
	g := chainGraph(
		[]ir.StreamRef{ir.Out(1)},
		[]ir.StreamRef{ir.Out(2)},
		[]ir.StreamRef{ir.Out(0)},
		[]ir.StreamRef{ir.In(0)},
	)

	_, err := EvaluationOrder(g)
	var ce *CycleError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"p", "q", "r", "p"}, ce.Path)
	assert.Contains(t, ce.Error(), "p → q → r → p")
}

func TestTarjanSCC_Singletons(t *testing.T) {
	graph := dependencyGraph{{1}, {2}, {}}
	sccs := tarjanSCC(graph)
	assert.Len(t, sccs, 3)
	for _, scc := range sccs {
		assert.Len(t, scc, 1)
	}
}
