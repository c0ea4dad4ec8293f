package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessions_List(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "monbridge.db")
	recordRun(t, dbPath, "sess-1", cleanTrace, "sum,diff")

	out, err := execute(NewSessionsCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "sess-1")
	assert.Contains(t, out, "sum,diff  pad  released")
}

func TestSessions_ListJSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "monbridge.db")
	recordRun(t, dbPath, "sess-1", cleanTrace, "sum")
	recordRun(t, dbPath, "sess-2", cleanTrace, "diff")

	out, err := execute(NewSessionsCommand(&RootOptions{Format: "json"}), "--db", dbPath)
	require.NoError(t, err)

	var sessions []SessionSummary
	decodeResponse(t, out, &sessions)
	require.Len(t, sessions, 2)
	assert.Equal(t, []string{"diff"}, sessions[1].Outputs)
	assert.NotNil(t, sessions[0].ReleasedAt)
}

func TestSessions_Show(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "monbridge.db")
	recordRun(t, dbPath, "sess-1", cleanTrace, "sum,diff")

	out, err := execute(NewSessionsCommand(&RootOptions{Format: "text"}), "show", "sess-1", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "session sess-1")
	assert.Contains(t, out, "1 total ok [5 -1]")
	assert.Contains(t, out, "3 partial no_frames []")

	out, err = execute(NewSessionsCommand(&RootOptions{Format: "json"}), "show", "sess-1", "--db", dbPath)
	require.NoError(t, err)
	var detail SessionDetail
	decodeResponse(t, out, &detail)
	assert.Equal(t, "sess-1", detail.ID)
	require.Len(t, detail.Calls, 3)
	assert.Equal(t, "single", detail.Calls[1].Mode)
}

func TestSessions_ShowUnknown(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "monbridge.db")
	recordRun(t, dbPath, "sess-1", cleanTrace, "sum")

	_, err := execute(NewSessionsCommand(&RootOptions{Format: "text"}), "show", "nope", "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
