package commands

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage_MissingConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())

	_, errOut, err := execute(t, "prepare", "--config", "nope.yml")
	require.Error(t, err)
	assert.Equal(t, "configuration file not found", err.Error())
	assert.Contains(t, errOut, "esgpanel init")
}

func TestStage_InvalidConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("esgpanel.yml", []byte("version: \"2.0\"\n"), 0644))

	_, errOut, err := execute(t, "select")
	require.Error(t, err)
	assert.Equal(t, "invalid configuration", err.Error())
	assert.Contains(t, errOut, "unsupported version")
}

func TestStage_InvalidYears(t *testing.T) {
	t.Chdir(t.TempDir())

	_, errOut, err := execute(t, "prepare", "--years", "2020-2010")
	require.Error(t, err)
	assert.Equal(t, "invalid --years", err.Error())
	assert.Contains(t, errOut, "2020 is after 2010")
}

func TestStage_MissingInputs(t *testing.T) {
	t.Chdir(t.TempDir())

	// defaults apply when there is no esgpanel.yml
	_, errOut, err := execute(t, "prepare")
	require.Error(t, err)
	assert.Equal(t, "prepare failed", err.Error())
	assert.Contains(t, errOut, "failed to load ESG data")

	_, errOut, err = execute(t, "regress")
	require.Error(t, err)
	assert.Contains(t, errOut, "esgpanel select")

	_, errOut, err = execute(t, "predict")
	require.Error(t, err)
	assert.Contains(t, errOut, "esgpanel regress")
}

func TestStage_UnreachableStoreIsWarning(t *testing.T) {
	t.Chdir(t.TempDir())

	out, _, err := execute(t, "prepare", "--redis", "redis://127.0.0.1:1/0")
	require.Error(t, err, "the stage itself still fails on missing inputs")
	assert.Contains(t, out, "Run store unavailable")
}
