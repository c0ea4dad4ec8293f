// Package engine implements the reference stream evaluator.
//
// The engine is a small, deterministic implementation of ir.Engine used to
// exercise the bridge end to end. It is not part of the bridge core: the
// bridge only depends on the ir.Engine and ir.Evaluator interfaces.
//
// EVALUATION MODEL:
//
// Event-driven outputs fire when every argument has a fresh value this tick.
// Outputs declared with hold fire when at least one argument is fresh and
// read the last known value of the others.
//
// Periodic outputs fire at every multiple of their period. Deadlines up to
// and including an event's timestamp are released before the event is
// processed, each as its own frame. count and mean aggregate over the
// updates seen since the previous deadline; other operators sample the last
// value of their arguments.
//
// Outputs are evaluated in the topological order computed by
// compiler.EvaluationOrder, so a derived output always sees the current
// tick's value of the outputs it reads.
//
// DETERMINISM:
//
// Identical spec text and identical event sequences produce identical frame
// sequences. There are no goroutines, no wall-clock reads and no map
// iteration on the evaluation path.
package engine
