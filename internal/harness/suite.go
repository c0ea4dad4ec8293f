package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScenarioDirNotFoundError is returned when a suite directory doesn't exist.
type ScenarioDirNotFoundError struct {
	Dir string
}

// Error implements the error interface.
func (e *ScenarioDirNotFoundError) Error() string {
	return fmt.Sprintf("scenario directory %q does not exist", e.Dir)
}

// DiscoverScenarios returns every .yaml and .yml file directly under dir,
// sorted by name.
func DiscoverScenarios(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ScenarioDirNotFoundError{Dir: dir}
		}
		return nil, fmt.Errorf("read scenario directory: %w", err)
	}

	paths := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// SuiteResult contains results from running a set of scenarios.
type SuiteResult struct {
	TotalScenarios int               `json:"total_scenarios"`
	Passed         int               `json:"passed"`
	Failed         int               `json:"failed"`
	Failures       []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure represents a failed scenario.
type ScenarioFailure struct {
	ScenarioPath string   `json:"scenario_path"`
	Name         string   `json:"name,omitempty"`
	Errors       []string `json:"errors"`
}

// RunSuite loads and runs every scenario in paths.
//
// For each path:
// 1. Load the scenario (spec paths relative to the scenario file)
// 2. Run it via harness.Run
// 3. Collect and report results
//
// A scenario that fails to load or run counts as failed; the suite keeps
// going. Only context cancellation stops it early.
func RunSuite(ctx context.Context, paths []string, opts ...RunOption) (*SuiteResult, error) {
	result := &SuiteResult{}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.TotalScenarios++

		scenario, err := LoadScenario(path)
		if err != nil {
			result.fail(path, "", fmt.Sprintf("failed to load scenario: %v", err))
			continue
		}

		runResult, err := Run(scenario, opts...)
		if err != nil {
			result.fail(path, scenario.Name, fmt.Sprintf("scenario execution failed: %v", err))
			continue
		}

		if !runResult.Pass {
			result.fail(path, scenario.Name, runResult.Errors...)
			continue
		}

		result.Passed++
	}

	return result, nil
}

func (r *SuiteResult) fail(path, name string, errs ...string) {
	r.Failed++
	r.Failures = append(r.Failures, ScenarioFailure{
		ScenarioPath: path,
		Name:         name,
		Errors:       errs,
	})
}
