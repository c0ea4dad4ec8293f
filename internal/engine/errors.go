package engine

import (
	"errors"
	"fmt"
	"time"
)

// ErrClosed is returned by AcceptEvent after Close.
var ErrClosed = errors.New("evaluator is closed")

// RuntimeError represents an error detected while evaluating an event.
//
// Runtime errors include:
//   - Time regression: timestamp earlier than the previous event
//   - Event shape: event length differs from the declared inputs
//   - Non-numeric operand or NaN result in an output
//   - Deadline quota: one event would release too many periodic frames
//
// The evaluator's state is left as it was before the failing event.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Output names the output stream being evaluated, if any.
	Output string

	// Time is the logical time of the failing step.
	Time time.Duration
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeTimeRegression indicates a timestamp earlier than the last one.
	ErrCodeTimeRegression RuntimeErrorCode = "TIME_REGRESSION"

	// ErrCodeEventShape indicates an event of the wrong length.
	ErrCodeEventShape RuntimeErrorCode = "EVENT_SHAPE"

	// ErrCodeInvalidOperand indicates a value that cannot be used by an operator.
	ErrCodeInvalidOperand RuntimeErrorCode = "INVALID_OPERAND"

	// ErrCodeNaNResult indicates an output evaluated to NaN.
	ErrCodeNaNResult RuntimeErrorCode = "NAN_RESULT"

	// ErrCodeQuotaExceeded indicates too many periodic deadlines in one event.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s: %s (output=%s, t=%s)", e.Code, e.Message, e.Output, e.Time)
	}
	return fmt.Sprintf("%s: %s (t=%s)", e.Code, e.Message, e.Time)
}

// IsRuntimeError reports whether err carries the given code.
// Uses errors.As to handle wrapped errors.
func IsRuntimeError(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsQuotaError returns true if the error is a quota exceeded error.
// Matches both RuntimeError with ErrCodeQuotaExceeded and DeadlinesExceededError.
func IsQuotaError(err error) bool {
	if IsRuntimeError(err, ErrCodeQuotaExceeded) {
		return true
	}
	var de *DeadlinesExceededError
	return errors.As(err, &de)
}

func newRegressionError(last, ts time.Duration) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeTimeRegression,
		Message: fmt.Sprintf("timestamp %s is before previous event at %s", ts, last),
		Time:    ts,
	}
}

func newShapeError(got, want int, ts time.Duration) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeEventShape,
		Message: fmt.Sprintf("event has %d values, want %d", got, want),
		Time:    ts,
	}
}
