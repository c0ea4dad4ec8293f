package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/monbridge/internal/bridge"
)

// Scenario drives one monitor through a sequence of host calls and checks
// the verdict arrays it returns.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Spec is the path of a CUE spec file, relative to the scenario file.
	Spec string `yaml:"spec,omitempty"`

	// InlineSpec holds spec text directly. Exactly one of Spec and
	// InlineSpec is set.
	InlineSpec string `yaml:"inline_spec,omitempty"`

	// Outputs is the comma separated output selection.
	Outputs string `yaml:"outputs"`

	// FramePolicy is "pad" (default) or "skip_empty".
	FramePolicy string `yaml:"frame_policy,omitempty"`

	// Steps are the host calls in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the whole run after the last step.
	// Supported types: status_count, mode_count, stride_aligned,
	// final_state, replay_match
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one host call. Exactly one of Single, Total and Partial is set.
type Step struct {
	Single  *SingleArgs  `yaml:"single,omitempty"`
	Total   []float64    `yaml:"total,omitempty"`
	Partial *PartialArgs `yaml:"partial,omitempty"`

	// Expect is the exact verdict array. If nil, values are not checked.
	Expect *[]float64 `yaml:"expect,omitempty"`

	// ExpectStatus is the expected bridge.Status name, e.g. "no_frames".
	ExpectStatus string `yaml:"expect_status,omitempty"`
}

// SingleArgs are the arguments of an ingest-single call.
type SingleArgs struct {
	Index int     `yaml:"index"`
	Value float64 `yaml:"value"`
	TS    float64 `yaml:"ts"`
}

// PartialArgs are the arguments of an ingest-partial call.
type PartialArgs struct {
	Values []float64 `yaml:"values"`
	Active []bool    `yaml:"active"`
}

// Mode returns which ingestion call the step makes.
func (s Step) Mode() bridge.MarshalMode {
	switch {
	case s.Single != nil:
		return bridge.ModeSingle
	case s.Partial != nil:
		return bridge.ModePartial
	default:
		return bridge.ModeTotal
	}
}

// Assertion validates the run as a whole.
type Assertion struct {
	// Type specifies the assertion type:
	// - "status_count": exactly Count steps ended with Status
	// - "mode_count": exactly Count steps used Mode
	// - "stride_aligned": every verdict array length is a multiple of the stride
	// - "final_state": query a store table and verify expected values
	// - "replay_match": re-running the recorded session reproduces every result
	Type string `yaml:"type"`

	// Status is a bridge.Status name (used by status_count).
	Status string `yaml:"status,omitempty"`

	// Mode is single, total or partial (used by mode_count).
	Mode string `yaml:"mode,omitempty"`

	// Count is the expected number of matching steps.
	Count int `yaml:"count,omitempty"`

	// Table is the store table name (used by final_state).
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (used by final_state).
	// All fields must match exactly.
	Where map[string]interface{} `yaml:"where,omitempty"`

	// Expect contains expected field values (used by final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]interface{} `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertStatusCount   = "status_count"
	AssertModeCount     = "mode_count"
	AssertStrideAligned = "stride_aligned"
	AssertFinalState    = "final_state"
	AssertReplayMatch   = "replay_match"
)

// LoadScenario reads and parses a scenario YAML file.
// Spec paths are resolved relative to the scenario file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the spec path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, basePath)
}

// ParseScenario parses scenario YAML held in memory.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Spec != "" && !filepath.IsAbs(scenario.Spec) && basePath != "" {
		scenario.Spec = filepath.Join(basePath, scenario.Spec)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// SpecText returns the scenario's spec source.
func (s *Scenario) SpecText() (string, error) {
	if s.InlineSpec != "" {
		return s.InlineSpec, nil
	}
	data, err := os.ReadFile(s.Spec)
	if err != nil {
		return "", fmt.Errorf("read spec: %w", err)
	}
	return string(data), nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Spec == "" && s.InlineSpec == "":
		return fmt.Errorf("one of spec or inline_spec is required")
	case s.Spec != "" && s.InlineSpec != "":
		return fmt.Errorf("spec and inline_spec are mutually exclusive")
	}

	if s.Spec != "" {
		if _, err := os.Stat(s.Spec); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", s.Spec)
		}
	}

	if s.Outputs == "" {
		return fmt.Errorf("outputs is required")
	}

	if _, err := bridge.ParseFramePolicy(s.FramePolicy); err != nil {
		return err
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, s Step) error {
	set := 0
	if s.Single != nil {
		set++
	}
	if s.Total != nil {
		set++
	}
	if s.Partial != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of single, total or partial is required", index)
	}
	if s.ExpectStatus != "" && !validStatus(s.ExpectStatus) {
		return fmt.Errorf("steps[%d]: unknown expect_status %q", index, s.ExpectStatus)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStatusCount:
		if !validStatus(a.Status) {
			return fmt.Errorf("assertions[%d]: status_count needs a known status, got %q", index, a.Status)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertModeCount:
		switch bridge.MarshalMode(a.Mode) {
		case bridge.ModeSingle, bridge.ModeTotal, bridge.ModePartial:
		default:
			return fmt.Errorf("assertions[%d]: mode_count needs single, total or partial, got %q", index, a.Mode)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertStrideAligned, AssertReplayMatch:
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

func validStatus(name string) bool {
	for _, s := range []bridge.Status{bridge.StatusOK, bridge.StatusNoFrames, bridge.StatusMarshalFailed, bridge.StatusEvalFailed, bridge.StatusUnknownHandle} {
		if s.String() == name {
			return true
		}
	}
	return false
}
