package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/monbridge/internal/ir"
)

// CycleError reports outputs that depend on each other.
//
// The reference engine evaluates every output at most once per tick, so a
// dependency cycle has no well-defined evaluation and is rejected at compile
// time.
type CycleError struct {
	Path []string `json:"path"` // Cycle path: ["a", "b", "a"]
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("[%s] dependency cycle detected: %s", ErrDependencyCycle, strings.Join(e.Path, " → "))
}

// EvaluationOrder returns output indices in an order where every output comes
// after the outputs it reads.
//
// The algorithm:
//  1. Build output → output dependency graph from argument references
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Reject any SCC with size > 1 or a self-loop
//  4. Topologically sort, breaking ties by declaration order
//
// Ties are broken by declaration order so the result is deterministic.
func EvaluationOrder(g *ir.StreamGraph) ([]int, error) {
	graph := buildDependencyGraph(g)

	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			return nil, &CycleError{Path: cyclePathNames(g, reconstructCyclePath(scc, graph))}
		}
	}

	return topoSort(graph), nil
}

// dependencyGraph maps output index → output indices it reads.
type dependencyGraph [][]int

func buildDependencyGraph(g *ir.StreamGraph) dependencyGraph {
	graph := make(dependencyGraph, len(g.Outputs))
	for i, out := range g.Outputs {
		graph[i] = []int{}
		for _, arg := range out.Args {
			if arg.Kind == ir.StreamOutput {
				graph[i] = append(graph[i], arg.Index)
			}
		}
	}
	return graph
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node int, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph dependencyGraph) [][]int {
	var (
		index   = 0
		stack   []int
		indices = make(map[int]int)
		lowlink = make(map[int]int)
		onStack = make(map[int]bool)
		sccs    [][]int
	)

	var strongConnect func(int)
	strongConnect = func(v int) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// Root node: pop the stack and emit an SCC
		if lowlink[v] == indices[v] {
			var scc []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sort.Ints(scc)
			sccs = append(sccs, scc)
		}
	}

	for node := range graph {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// reconstructCyclePath builds a closed path through an SCC, starting at its
// lowest index.
func reconstructCyclePath(scc []int, graph dependencyGraph) []int {
	if len(scc) == 0 {
		return []int{}
	}

	sccSet := make(map[int]bool, len(scc))
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []int{current}
	visited := make(map[int]bool)

	for {
		visited[current] = true

		next := -1
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next < 0 {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}

func cyclePathNames(g *ir.StreamGraph, path []int) []string {
	names := make([]string, len(path))
	for i, ix := range path {
		names[i] = g.Outputs[ix].Name
	}
	return names
}

// topoSort orders an acyclic dependency graph with Kahn's algorithm, always
// picking the lowest ready index.
func topoSort(graph dependencyGraph) []int {
	pending := make([]int, len(graph))
	dependents := make([][]int, len(graph))
	for node, deps := range graph {
		pending[node] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], node)
		}
	}

	var ready []int
	for node, n := range pending {
		if n == 0 {
			ready = append(ready, node)
		}
	}

	order := make([]int, 0, len(graph))
	for len(ready) > 0 {
		sort.Ints(ready)
		node := ready[0]
		ready = ready[1:]
		order = append(order, node)
		for _, dependent := range dependents[node] {
			pending[dependent]--
			if pending[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	return order
}
