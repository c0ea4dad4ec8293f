// Package harness provides conformance testing for monitor specifications.
//
// The harness builds a real monitor from a spec, drives it through the host
// calls a scenario lists, and checks the verdict arrays that come back.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	spec: specs/sum.cue          # or inline_spec: |
//	outputs: "sum,diff"
//	frame_policy: pad            # or skip_empty
//	steps:
//	  - total: [2, 3, 5]
//	    expect: [5, -1]
//	  - single: { index: 0, value: 2, ts: 6 }
//	    expect_status: no_frames
//	  - partial: { values: [1, 2, 7], active: [true, false] }
//	assertions:
//	  - type: status_count
//	    status: ok
//	    count: 1
//	  - type: final_state
//	    table: calls
//	    where: { seq: 1 }
//	    expect: { status: "ok" }
//
// # Assertion Types
//
//   - status_count: exactly N steps ended with the given status
//   - mode_count: exactly N steps used the given ingestion mode
//   - stride_aligned: every verdict array splits into whole blocks
//   - final_state: queries a store table and verifies expected values
//   - replay_match: re-running the recorded session reproduces every result
//
// # Deterministic Testing
//
// Every run records into a fresh in-memory store with a fixed session ID
// ("scenario-" + name) and testutil.DeterministicClock timestamps, so traces
// are identical across runs for golden file comparison.
package harness
