package ir

import "time"

// Engine turns specification text into running evaluators.
//
// The bridge only ever sees these two interfaces; any stream-based
// runtime-verification engine can sit behind them.
type Engine interface {
	// Parse compiles specification text into a stream graph.
	Parse(spec string) (*StreamGraph, error)

	// Instantiate creates a fresh evaluator with empty history.
	Instantiate(g *StreamGraph) (Evaluator, error)
}

// Evaluator consumes one event per tick and reports what changed.
//
// event has exactly NumInputs entries; Absent marks an input with no new
// value this tick. ts is non-decreasing across calls. The returned frames
// are in arrival order and may be empty.
type Evaluator interface {
	AcceptEvent(event []Value, ts time.Duration) ([]Frame, error)
}
