package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Text(t *testing.T) {
	specPath, _ := fixture(t, cleanTrace)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), specPath)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
	assert.Contains(t, out, "[0] a Float64")
	assert.Contains(t, out, "[1] diff Float64 = sub")
	assert.NotContains(t, out, "Selection")
}

func TestValidate_JSONWithSelection(t *testing.T) {
	specPath, _ := fixture(t, cleanTrace)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), specPath, "--outputs", "diff, sum,diff")
	require.NoError(t, err)

	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Valid)
	assert.Len(t, result.Inputs, 2)
	assert.Len(t, result.Outputs, 2)
	assert.Equal(t, []string{"diff", "sum", "diff"}, result.Selection)
	assert.Equal(t, 3, result.Stride)
	assert.NotEmpty(t, result.SpecHash)
}

func TestValidate_PeriodicOutput(t *testing.T) {
	path := writeFile(t, t.TempDir(), "window.cue", `input: {a: "Float64"}
output: {
	m: {op: "mean", args: ["a"], period: 2}
}
`)
	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.NoError(t, err)
	assert.Contains(t, out, "m Float64 = mean every 2s")
}

func TestValidate_UnknownOutput(t *testing.T) {
	specPath, _ := fixture(t, cleanTrace)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), specPath, "--outputs", "sum,total")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeSpecInvalid, resp.Error.Code)
	assert.Contains(t, resp.Error.Details, "total")
}

func TestValidate_MissingSpec(t *testing.T) {
	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), filepath.Join(t.TempDir(), "nope.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestValidate_InvalidSpec(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.cue", `output: {x: {op: "warp", args: []}}`)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E006]: invalid spec")
}
