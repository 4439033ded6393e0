package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var harnessScenarios = filepath.Join("..", "harness", "testdata", "scenarios")

// copyScenario copies a harness scenario into dir.
func copyScenario(t *testing.T, dir, name string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(harnessScenarios, name+".yaml"))
	require.NoError(t, err)
	path := filepath.Join(dir, name+".yaml")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	copyScenario(t, dir, "perfect_2back")
	copyScenario(t, dir, "pause_resume")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "skipped.yaml"), []byte("name: x\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	files, err = findScenarioFiles(dir, "pause*")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "pause_resume.yaml", filepath.Base(files[0]))

	single := filepath.Join(dir, "perfect_2back.yaml")
	files, err = findScenarioFiles(single, "")
	require.NoError(t, err)
	assert.Equal(t, []string{single}, files)

	_, err = findScenarioFiles(filepath.Join(dir, "missing"), "")
	assert.Error(t, err)

	_, err = findScenarioFiles(dir, "[")
	assert.Error(t, err)
}

func TestSimulate_HarnessScenarios(t *testing.T) {
	stdout, _, err := execute(t, nil, "simulate", harnessScenarios)
	require.NoError(t, err)

	assert.Contains(t, stdout, "✓ perfect_2back: 5/5 trials, accuracy 100%")
	assert.Contains(t, stdout, "✓ pause_resume")
	assert.Contains(t, stdout, "✓ stop_early: 4/5 trials, accuracy 50%")
	assert.Contains(t, stdout, "Simulation Summary: 3 passed, 0 failed, 3 total")
}

func TestSimulate_UpdateThenMatch(t *testing.T) {
	dir := t.TempDir()
	copyScenario(t, dir, "perfect_2back")

	stdout, _, err := execute(t, nil, "simulate", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, stdout, "(golden updated)")

	// The CLI writes the same trace the harness golden tests pin.
	got, err := os.ReadFile(filepath.Join(dir, "golden", "perfect_2back.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join("..", "harness", "testdata", "golden", "perfect_2back.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))

	stdout, _, err = execute(t, nil, "simulate", dir, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   SimulateResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "match", resp.Data.Scenarios[0].Golden)
	assert.True(t, resp.Data.Scenarios[0].Pass)
	assert.Equal(t, 1, resp.Data.Passed)
}

func TestSimulate_GoldenMismatch(t *testing.T) {
	dir := t.TempDir()
	copyScenario(t, dir, "stop_early")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "stop_early.golden"), []byte("stale\n"), 0644))

	stdout, _, err := execute(t, nil, "simulate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ stop_early")
	assert.Contains(t, stdout, "trace does not match golden file")
	assert.Contains(t, stdout, "Simulation Summary: 0 passed, 1 failed, 1 total")
}

func TestSimulate_FailingAssertion(t *testing.T) {
	dir := t.TempDir()
	scenario := `name: wrong_expectation
config:
  n_back: 1
  seconds_per_trial: 1
  match_percentage: 50
  total_trials: 3
sequence: [4, 4, 0]
assertions:
  - type: summary
    expect:
      hits: 1
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(scenario), 0644))

	stdout, _, err := execute(t, nil, "simulate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ wrong_expectation")
	assert.Contains(t, stdout, "hits=0 (want 1)")
}

func TestSimulate_InvalidScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\nbogus: 1\n"), 0644))

	stdout, _, err := execute(t, nil, "simulate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ broken.yaml")
	assert.Contains(t, stdout, "failed to load scenario")
}

func TestSimulate_MissingPath(t *testing.T) {
	stdout, _, err := execute(t, nil, "simulate", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E005]")
}
