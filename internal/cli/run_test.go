package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/monbridge/internal/config"
	"github.com/roach88/monbridge/internal/store"
)

func TestRun_MissingOutputsFlag(t *testing.T) {
	specPath, tracePath := fixture(t, cleanTrace)

	_, err := execute(NewRunCommand(&RootOptions{Format: "text"}), specPath, tracePath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "outputs")
}

func TestRun_Text(t *testing.T) {
	specPath, tracePath := fixture(t, cleanTrace)

	out, err := execute(NewRunCommand(&RootOptions{Format: "text"}), specPath, tracePath, "--outputs", "sum,diff")
	require.NoError(t, err)
	assert.Equal(t, "# sum,diff\n1 total ok [5 -1]\n2 single no_frames []\n3 partial no_frames []\n", out)
}

func TestRun_JSON(t *testing.T) {
	specPath, tracePath := fixture(t, cleanTrace)

	out, err := execute(NewRunCommand(&RootOptions{Format: "json"}), specPath, tracePath, "--outputs", "diff,sum")
	require.NoError(t, err)

	var result RunResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Empty(t, result.SessionID)
	assert.Equal(t, []string{"diff", "sum"}, result.Outputs)
	assert.Equal(t, 2, result.Stride)
	require.Len(t, result.Calls, 3)
	assert.Equal(t, []any{float64(-1), float64(5)}, result.Calls[0].Values)
	assert.Equal(t, "no_frames", result.Calls[1].Status)
	assert.Equal(t, 0, result.Failed)
}

func TestRun_FailedCallsExitOne(t *testing.T) {
	specPath, tracePath := fixture(t, cleanTrace+"total,3,1\nsingle,4,0,NaN\n")

	out, err := execute(NewRunCommand(&RootOptions{Format: "text"}), specPath, tracePath, "--outputs", "sum")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "2 call(s) failed")
	assert.Contains(t, out, "4 total marshal_failed []")
	assert.Contains(t, out, "5 single marshal_failed []")
}

func TestRun_DebugPostureStopsAtFirstFailure(t *testing.T) {
	specPath, tracePath := fixture(t, cleanTrace+"total,3,1\nsingle,4,0,NaN\n")

	out, err := execute(NewRunCommand(&RootOptions{Format: "text"}), specPath, tracePath, "--outputs", "sum", "--posture", "debug")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "call 4 failed")
	assert.Contains(t, out, "4 total marshal_failed []")
	assert.NotContains(t, out, "5 single")
	assert.Contains(t, out, "stopped at call 4 (debug posture)")
}

func TestRun_DebugPostureFromConfig(t *testing.T) {
	specPath, tracePath := fixture(t, "total,0,1\ntotal,1,1,1\n")
	cfg := config.Default()
	cfg.Posture = "debug"

	out, err := execute(NewRunCommand(&RootOptions{Format: "json", Config: cfg}), specPath, tracePath, "--outputs", "sum")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result RunResult
	decodeResponse(t, out, &result)
	assert.Equal(t, int64(1), result.StoppedAt)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Calls, 1)
	assert.Equal(t, "marshal_failed", result.Calls[0].Status)
}

func TestRun_ReleasePostureKeepsGoing(t *testing.T) {
	specPath, tracePath := fixture(t, "total,0,1\ntotal,1,1,1\n")

	out, err := execute(NewRunCommand(&RootOptions{Format: "text"}), specPath, tracePath, "--outputs", "sum", "--posture", "release")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 call(s) failed")
	assert.Contains(t, out, "2 total ok [2]")
	assert.NotContains(t, out, "stopped")
}

func TestRun_EvalFailureReported(t *testing.T) {
	specPath, tracePath := fixture(t, "total,5,1,1\ntotal,4,1,1\ntotal,5,2,2\n")

	out, err := execute(NewRunCommand(&RootOptions{Format: "text"}), specPath, tracePath, "--outputs", "sum")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "2 total eval_failed []")
	assert.Contains(t, out, "3 total ok [4]")
}

func TestRun_RecordsSession(t *testing.T) {
	specPath, tracePath := fixture(t, cleanTrace)
	dbPath := filepath.Join(t.TempDir(), "monbridge.db")

	opts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(opts)
	out, err := execute(cmd, specPath, tracePath, "--outputs", "sum,diff", "--db", dbPath, "--frame-policy", "skip_empty")
	require.NoError(t, err)
	assert.Contains(t, out, "session ")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	sessions, err := st.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, []string{"sum", "diff"}, sessions[0].Outputs)
	assert.Equal(t, "skip_empty", sessions[0].FramePolicy)
	assert.NotNil(t, sessions[0].ReleasedAt)

	calls, err := st.ReadCalls(ctx, sessions[0].ID)
	require.NoError(t, err)
	require.Len(t, calls, 3)
	assert.Equal(t, []float64{5, -1}, calls[0].Result)
	assert.Equal(t, "no_frames", calls[2].Status)
}

func TestRun_InvalidInputs(t *testing.T) {
	specPath, tracePath := fixture(t, cleanTrace)
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing spec", []string{filepath.Join(dir, "nope.cue"), tracePath, "--outputs", "sum"}, "invalid spec"},
		{"missing trace", []string{specPath, filepath.Join(dir, "nope.csv"), "--outputs", "sum"}, "invalid trace"},
		{"bad trace", []string{specPath, writeFile(t, dir, "bad.csv", "burst,0\n"), "--outputs", "sum"}, "invalid trace"},
		{"unknown output", []string{specPath, tracePath, "--outputs", "total"}, "failed to initialize monitor"},
		{"bad posture", []string{specPath, tracePath, "--outputs", "sum", "--posture", "loud"}, "invalid flags"},
		{"bad policy", []string{specPath, tracePath, "--outputs", "sum", "--frame-policy", "drop"}, "invalid flags"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(NewRunCommand(&RootOptions{Format: "text"}), tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFormatBlocks(t *testing.T) {
	assert.Equal(t, "[]", formatBlocks(nil, 2))
	assert.Equal(t, "[1 2] [3 4]", formatBlocks([]any{1, 2, 3, 4}, 2))
	assert.Equal(t, "[NaN]", formatBlocks([]any{"NaN"}, 1))
}
