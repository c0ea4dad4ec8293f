package harness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/monbridge/internal/bridge"
	"github.com/roach88/monbridge/internal/ir"
	"github.com/roach88/monbridge/internal/testutil"
)

func loadScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
	require.NoError(t, err)
	return s
}

func TestRun_SumTotal(t *testing.T) {
	s := loadScenario(t, "sum_total")

	result, err := Run(s, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "scenario-sum_total", result.SessionID)
	assert.Equal(t, 2, result.Stride)

	require.Len(t, result.Trace, 4)
	assert.Equal(t, []float64{5, -1}, result.Trace[0].Values)
	assert.Equal(t, "ok", result.Trace[0].Status)
	assert.Empty(t, result.Trace[0].Error)
	assert.Equal(t, "marshal_failed", result.Trace[3].Status)
	assert.NotEmpty(t, result.Trace[3].Error)
}

func TestRun_WindowSkip(t *testing.T) {
	s := loadScenario(t, "window_skip")

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "eval_failed", result.Trace[3].Status)
}

func TestRun_ExpectMismatchFails(t *testing.T) {
	s, err := ParseScenario([]byte(inlineSum), "")
	require.NoError(t, err)
	wrong := []float64{4}
	s.Steps[0].Expect = &wrong
	s.Steps[0].ExpectStatus = "no_frames"

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "expected [4], got [3]")
	assert.Contains(t, result.Errors[1], "expected status no_frames, got ok")
}

func TestRun_ConfigErrorIsRunError(t *testing.T) {
	s, err := ParseScenario([]byte(strings.Replace(inlineSum, `outputs: "sum"`, `outputs: "total"`, 1)), "")
	require.NoError(t, err)

	_, err = Run(s)
	require.Error(t, err)
	assert.ErrorIs(t, err, bridge.ErrConfig)
}

func TestRun_Deterministic(t *testing.T) {
	s := loadScenario(t, "window_skip")

	r1, err := Run(s)
	require.NoError(t, err)
	r2, err := Run(s)
	require.NoError(t, err)

	a, err := MarshalSnapshot(s, r1)
	require.NoError(t, err)
	b, err := MarshalSnapshot(s, r2)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_WithScriptedEngine(t *testing.T) {
	e := testutil.NewScriptedEngine([]string{"a"}, []string{"x", "y"}).Script(
		[]ir.Frame{testutil.Frame(0, 1, ir.Float(2), 0, ir.Float(1))},
	)
	s, err := ParseScenario([]byte(`
name: scripted
description: "reversed selection over scripted frames"
inline_spec: "scripted"
outputs: "y,x"
steps:
  - total: [0, 0]
    expect: [2, 1]
  - total: [0, 1]
    expect: []
`), "")
	require.NoError(t, err)

	result, err := Run(s, WithEngine(e))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, []string{"scripted"}, e.Specs())
}
