package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverScenarios(t *testing.T) {
	paths, err := DiscoverScenarios("testdata/scenarios")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("testdata", "scenarios", "sum_total.yaml"),
		filepath.Join("testdata", "scenarios", "window_skip.yaml"),
	}, paths)
}

func TestDiscoverScenarios_MissingDir(t *testing.T) {
	_, err := DiscoverScenarios(filepath.Join(t.TempDir(), "nope"))
	var nf *ScenarioDirNotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestDiscoverScenarios_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.yaml"), 0o755))

	paths, err := DiscoverScenarios(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml"), filepath.Join(dir, "b.yml")}, paths)
}

func TestRunSuite(t *testing.T) {
	paths, err := DiscoverScenarios("testdata/scenarios")
	require.NoError(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("name: bad\n"), 0o644))

	failing := filepath.Join(t.TempDir(), "failing.yaml")
	require.NoError(t, os.WriteFile(failing, []byte(inlineSum+"    expect_status: no_frames\n"), 0o644))

	result, err := RunSuite(context.Background(), append(paths, bad, failing))
	require.NoError(t, err)
	assert.Equal(t, 4, result.TotalScenarios)
	assert.Equal(t, 2, result.Passed)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Failures, 2)
	assert.Equal(t, bad, result.Failures[0].ScenarioPath)
	assert.Contains(t, result.Failures[0].Errors[0], "failed to load scenario")
	assert.Equal(t, "inline_sum", result.Failures[1].Name)
}

func TestRunSuite_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := RunSuite(ctx, []string{"testdata/scenarios/sum_total.yaml"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, result.TotalScenarios)
}
