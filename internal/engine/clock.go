package engine

import "time"

// Clock tracks logical time for one evaluator.
//
// Every accepted event advances the tick counter by one. Timestamps are
// non-decreasing; equal timestamps are allowed and produce distinct ticks.
//
// Clock is not safe for concurrent use; an Evaluator owns exactly one.
type Clock struct {
	tick    int64
	last    time.Duration
	started bool
}

// NewClock creates a clock with no events observed.
func NewClock() *Clock {
	return &Clock{}
}

// Check validates ts against the last observed timestamp without advancing.
func (c *Clock) Check(ts time.Duration) error {
	if c.started && ts < c.last {
		return newRegressionError(c.last, ts)
	}
	return nil
}

// Advance records ts and returns the new tick number (1-based).
// Callers must Check first.
func (c *Clock) Advance(ts time.Duration) int64 {
	c.last = ts
	c.started = true
	c.tick++
	return c.tick
}

// Tick returns the number of events observed so far.
func (c *Clock) Tick() int64 {
	return c.tick
}

// Last returns the most recent timestamp and whether any event was observed.
func (c *Clock) Last() (time.Duration, bool) {
	return c.last, c.started
}
