package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configFixture(name string) string {
	return filepath.Join("..", "config", "testdata", name)
}

func TestValidate_Valid(t *testing.T) {
	file := configFixture("valid.yaml")

	stdout, _, err := execute(t, nil, "validate", file)
	require.NoError(t, err)
	assert.Equal(t, "✓ "+file+" is valid\n", stdout)
}

func TestValidate_ValidVerbose(t *testing.T) {
	_, stderr, err := execute(t, nil, "validate", configFixture("valid.yaml"), "--verbose")
	require.NoError(t, err)
	assert.Contains(t, stderr, "test: 3-back, 40 trials, 2.5s per trial, 25% matches")
	assert.Contains(t, stderr, "archive: /tmp/nback-test.db")
}

func TestValidate_ValidJSON(t *testing.T) {
	stdout, _, err := execute(t, nil, "validate", configFixture("valid.yaml"), "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	require.NotNil(t, resp.Data.Config)
	assert.Equal(t, 3, resp.Data.Config.Test.NBack)
}

func TestValidate_Invalid(t *testing.T) {
	file := configFixture("invalid.yaml")

	stdout, _, err := execute(t, nil, "validate", file)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, stdout, "✗ "+file+" is invalid")
	for _, field := range []string{"test.n_back", "test.seconds_per_trial", "test.match_percentage", "test.grid_size"} {
		assert.Contains(t, stdout, "E201 "+field+":", field)
	}
}

func TestValidate_InvalidJSON(t *testing.T) {
	stdout, _, err := execute(t, nil, "validate", configFixture("invalid.yaml"), "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	assert.NotEmpty(t, resp.Data.Errors)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E201", resp.Error.Code)
}

func TestValidate_Malformed(t *testing.T) {
	stdout, _, err := execute(t, nil, "validate", configFixture("malformed.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E003]: failed to load config")
}

func TestValidate_MissingFile(t *testing.T) {
	_, _, err := execute(t, nil, "validate", configFixture("does_not_exist.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidate_RequiresArgument(t *testing.T) {
	_, _, err := execute(t, nil, "validate")
	require.Error(t, err)
}
