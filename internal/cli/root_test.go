package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and captures its combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	// Reset flags touched by previous tests; cobra keeps package state.
	flagVerbose, flagQuiet, flagConfig, flagDir, flagNoColor = false, false, "", "", false
	planFlagMatrix = ""
	initFlagForce, initFlagDefaults = false, false
	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		f.Changed = false
	})

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// scaffold writes a valid gauntlet.toml and matrix.yaml into a temp dir and
// chdirs into it.
func scaffold(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	require.NoError(t, os.WriteFile("gauntlet.toml", []byte(`
[project]
name = "client-tests"
matrix_file = "matrix.yaml"

[run]
test_command = ["cargo", "test", "--"]
`), 0o644))

	require.NoError(t, os.WriteFile("matrix.yaml", []byte(`
topologies:
  - name: single
    kind: single
    tests: [streams, projections]
`), 0o644))
}

func TestVersionCommand(t *testing.T) {
	_, err := execute(t, "version")
	require.NoError(t, err)
}

func TestValidateCommand_OK(t *testing.T) {
	scaffold(t)
	_, err := execute(t, "validate")
	require.NoError(t, err)
}

func TestValidateCommand_BadMatrix(t *testing.T) {
	scaffold(t)
	require.NoError(t, os.WriteFile("matrix.yaml", []byte(`
topologies:
  - name: bad
    kind: mesh
    tests: [streams]
`), 0o644))

	_, err := execute(t, "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid matrix")
}

func TestValidateCommand_BadConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile("gauntlet.toml", []byte(`
[run]
test_command = []
concurrency = 0
`), 0o644))

	_, err := execute(t, "validate")
	require.Error(t, err)
}

func TestPlanCommand(t *testing.T) {
	scaffold(t)
	_, err := execute(t, "plan")
	require.NoError(t, err)
}

func TestPlanCommand_MatrixOverride(t *testing.T) {
	scaffold(t)
	other := filepath.Join(t.TempDir(), "other.yaml")
	require.NoError(t, os.WriteFile(other, []byte(`
topologies:
  - name: cluster
    kind: cluster
    tests: [streams]
`), 0o644))

	_, err := execute(t, "plan", "--matrix", other)
	require.NoError(t, err)
}

func TestInitCommand_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	_, err := execute(t, "init", "--defaults")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "gauntlet.toml"))
	assert.FileExists(t, filepath.Join(dir, "matrix.yaml"))

	data, err := os.ReadFile(filepath.Join(dir, "gauntlet.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "test_command")
}

func TestInitCommand_RefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile("gauntlet.toml", []byte("# existing"), 0o644))

	_, err := execute(t, "init", "--defaults")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestUnknownCommand(t *testing.T) {
	_, err := execute(t, "definitely-not-a-command")
	require.Error(t, err)
}

func TestExecuteExitCode(t *testing.T) {
	scaffold(t)
	rootCmd.SetArgs([]string{"validate"})
	assert.Equal(t, 0, Execute())
}
