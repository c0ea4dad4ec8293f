package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const sumSpec = `input: {a: "Float64", b: "Float64"}
output: {
	sum:  {op: "add", args: ["a", "b"]}
	diff: {op: "sub", args: ["a", "b"]}
}
`

// cleanTrace produces [5,-1] then two calls with no frames.
const cleanTrace = `# mode,t,...
total,0,2,3
single,1,0,4
partial,2,-,1
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// fixture writes the sum spec and a trace into a temp dir.
func fixture(t *testing.T, trace string) (specPath, tracePath string) {
	t.Helper()
	dir := t.TempDir()
	return writeFile(t, dir, "sum.cue", sumSpec), writeFile(t, dir, "trace.csv", trace)
}

func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var resp CLIResponse
	if data != nil {
		resp.Data = data
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}
