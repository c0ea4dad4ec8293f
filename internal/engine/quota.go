package engine

import (
	"errors"
	"fmt"
	"time"
)

// DefaultMaxDeadlines is the default maximum number of periodic deadlines a
// single event may release.
//
// A large jump in time with a short period would otherwise produce an
// unbounded number of frames from one call.
const DefaultMaxDeadlines = 10000

// DeadlineQuota counts periodic deadlines released by one event and enforces
// a limit.
//
// The quota is reset at the start of every AcceptEvent call.
type DeadlineQuota struct {
	limit   int
	current int
}

// NewDeadlineQuota creates a quota with the given limit.
func NewDeadlineQuota(limit int) *DeadlineQuota {
	return &DeadlineQuota{limit: limit}
}

// Check increments the counter and validates against the limit.
func (q *DeadlineQuota) Check(at time.Duration) error {
	q.current++
	if q.current > q.limit {
		return &DeadlinesExceededError{At: at, Count: q.current, Limit: q.limit}
	}
	return nil
}

// Reset resets the counter to 0.
func (q *DeadlineQuota) Reset() {
	q.current = 0
}

// Current returns the current count.
func (q *DeadlineQuota) Current() int {
	return q.current
}

// Max returns the limit.
func (q *DeadlineQuota) Max() int {
	return q.limit
}

// DeadlinesExceededError is returned when one event would release more
// periodic deadlines than the quota allows.
type DeadlinesExceededError struct {
	At    time.Duration // Deadline that crossed the limit
	Count int           // Deadlines counted so far
	Limit int           // Maximum allowed
}

// Error implements the error interface.
func (e *DeadlinesExceededError) Error() string {
	return fmt.Sprintf("event at or after %s released too many periodic deadlines: %d > %d limit",
		e.At, e.Count, e.Limit)
}

// IsDeadlinesExceededError returns true if the error is a DeadlinesExceededError.
// Uses errors.As to handle wrapped errors.
func IsDeadlinesExceededError(err error) bool {
	var de *DeadlinesExceededError
	return errors.As(err, &de)
}
