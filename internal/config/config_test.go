package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, FindConfigFile(dir))

	alt := filepath.Join(dir, ConfigFileNameAlt)
	require.NoError(t, os.WriteFile(alt, []byte("verbose: true\n"), 0o600))
	assert.Equal(t, alt, FindConfigFile(dir))

	main := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(main, []byte("verbose: true\n"), 0o600))
	assert.Equal(t, main, FindConfigFile(dir), "yaml wins over yml")
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "plans", "orders")
	require.NoError(t, os.MkdirAll(nested, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), nil, 0o600))

	assert.Equal(t, root, FindProjectRoot(nested))
	assert.Empty(t, FindProjectRoot(t.TempDir()))
}

func TestValidate(t *testing.T) {
	for _, mode := range ValidOutputModes {
		assert.NoError(t, ValidateOutput(mode))
	}
	assert.ErrorContains(t, ValidateOutput("html"), "invalid output")

	assert.NoError(t, ValidateOnError("skip"))
	assert.ErrorContains(t, ValidateOnError("retry"), "valid: abort, skip")
}

func TestDefaults(t *testing.T) {
	d := Defaults()
	assert.Equal(t, DefaultStateFile, d["state_path"])
	assert.Equal(t, DefaultOnError, d["on_error"])
	assert.NoError(t, ValidateOutput(d["output"].(string)))
}
