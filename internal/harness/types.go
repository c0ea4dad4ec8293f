package harness

import "github.com/roach88/monbridge/internal/bridge"

// TraceEvent is one host call and what it returned.
type TraceEvent struct {
	Step   int                `json:"step"` // 1-based
	Mode   bridge.MarshalMode `json:"mode"`
	Args   map[string]any     `json:"args"`
	Values []float64          `json:"result"`
	Status string             `json:"status"`
	Error  string             `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expectation and assertion matched.
	Pass bool `json:"pass"`

	// Stride is the number of values per verdict block.
	Stride int `json:"stride"`

	// Trace contains every host call in order.
	// Used for assertions and golden comparison.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// SessionID identifies the recorded session in the run's store.
	SessionID string `json:"session_id"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a host call to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
