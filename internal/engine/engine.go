package engine

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/monbridge/internal/compiler"
	"github.com/roach88/monbridge/internal/ir"
)

// Engine is the reference ir.Engine: CUE specifications compiled by
// internal/compiler and evaluated incrementally by Evaluator.
//
// An Engine holds no per-monitor state and is safe to share; every
// Instantiate call returns an independent Evaluator.
type Engine struct {
	logger       *zap.Logger
	maxDeadlines int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger handed to every Evaluator.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMaxDeadlines sets how many periodic deadlines one event may release.
//
// Default: DefaultMaxDeadlines.
// Use WithMaxDeadlines(3) for testing quota enforcement.
func WithMaxDeadlines(n int) Option {
	return func(e *Engine) {
		e.maxDeadlines = n
	}
}

// New creates a reference engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:       zap.NewNop(),
		maxDeadlines: DefaultMaxDeadlines,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Parse compiles CUE specification text.
func (e *Engine) Parse(spec string) (*ir.StreamGraph, error) {
	g, err := compiler.Compile(spec)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("specification parsed",
		zap.String("spec_hash", g.SpecHash),
		zap.Int("inputs", len(g.Inputs)),
		zap.Int("outputs", len(g.Outputs)),
	)
	return g, nil
}

// Instantiate creates an Evaluator with empty history.
//
// Graphs built by hand rather than by Parse are validated here; a missing
// evaluation order is computed.
func (e *Engine) Instantiate(g *ir.StreamGraph) (ir.Evaluator, error) {
	if g == nil {
		return nil, errors.New("instantiate: nil stream graph")
	}
	if errs := compiler.Validate(g); len(errs) > 0 {
		return nil, fmt.Errorf("instantiate: %w", errs[0])
	}

	order := g.Order
	if len(order) != len(g.Outputs) {
		computed, err := compiler.EvaluationOrder(g)
		if err != nil {
			return nil, fmt.Errorf("instantiate: %w", err)
		}
		order = computed
	}

	return newEvaluator(g, order, e.maxDeadlines, e.logger), nil
}
