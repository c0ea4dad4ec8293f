package bridge

import (
	"errors"
	"fmt"

	"github.com/roach88/monbridge/internal/ir"
)

// Sentinel errors. Typed errors below match these with errors.Is.
var (
	// ErrConfig matches every *ConfigError.
	ErrConfig = errors.New("monitor configuration error")

	// ErrMarshal matches every *MarshalError.
	ErrMarshal = errors.New("input marshalling error")

	// ErrEval matches every *EvalError.
	ErrEval = errors.New("evaluation error")

	// ErrUnknownHandle is returned for a handle that was never issued or has
	// been released.
	ErrUnknownHandle = errors.New("unknown monitor handle")

	// ErrNaN is returned when a host value is NaN.
	ErrNaN = ir.ErrNaN
)

// ConfigErrorKind names the stage of monitor creation that failed.
type ConfigErrorKind string

const (
	// KindParse indicates the engine rejected the specification text.
	KindParse ConfigErrorKind = "parse"

	// KindUnknownOutput indicates a requested output is not in the specification.
	KindUnknownOutput ConfigErrorKind = "unknown_output"

	// KindEmptySelection indicates an empty output list or an empty name in it.
	KindEmptySelection ConfigErrorKind = "empty_selection"

	// KindInstantiate indicates the engine could not create an evaluator.
	KindInstantiate ConfigErrorKind = "instantiate"
)

// ConfigError is returned when a monitor cannot be created. No handle is
// issued.
type ConfigError struct {
	Kind ConfigErrorKind
	Name string // offending output name, if any
	Err  error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Name != "" && e.Err != nil:
		return fmt.Sprintf("config %s: %q: %v", e.Kind, e.Name, e.Err)
	case e.Name != "":
		return fmt.Sprintf("config %s: %q", e.Kind, e.Name)
	case e.Err != nil:
		return fmt.Sprintf("config %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("config %s", e.Kind)
	}
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Is reports whether target is ErrConfig.
func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// MarshalMode identifies the ingestion shape a call used.
type MarshalMode string

const (
	ModeSingle  MarshalMode = "single"
	ModeTotal   MarshalMode = "total"
	ModePartial MarshalMode = "partial"
)

// MarshalError is returned when host buffers do not have the shape the
// ingestion mode requires. The evaluator is never called.
type MarshalError struct {
	Mode   MarshalMode
	Reason string
	Err    error
}

func (e *MarshalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("marshal %s: %s: %v", e.Mode, e.Reason, e.Err)
	}
	return fmt.Sprintf("marshal %s: %s", e.Mode, e.Reason)
}

func (e *MarshalError) Unwrap() error { return e.Err }

// Is reports whether target is ErrMarshal.
func (e *MarshalError) Is(target error) bool { return target == ErrMarshal }

// EvalError wraps a failure returned by the evaluator.
type EvalError struct {
	Err error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("evaluate: %v", e.Err)
}

func (e *EvalError) Unwrap() error { return e.Err }

// Is reports whether target is ErrEval.
func (e *EvalError) Is(target error) bool { return target == ErrEval }
