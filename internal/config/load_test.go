package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes content to gauntlet.toml in dir and returns its path.
func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleConfig = `
[project]
name = "esdb-rust-client"
matrix_file = "ci/matrix.yaml"

[docker]
repository = "ghcr.io/eventstore"
image = "eventstore"

[provision]
default_channel = "lts"
pull = true
[provision.channels]
stable = "24.10"
lts = "23.10"

[run]
test_command = ["cargo", "test", "--test", "integration", "--"]
concurrency = 4
unit_timeout = "15m"
startup_timeout = "2m"
log_level = "debug"
backtrace = true
`

func TestLoadFromFile_ParsesAllSections(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeConfig(t, dir, sampleConfig)

	cfg, md, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Empty(t, md.Undecoded(), "all keys should be recognized")

	assert.Equal(t, "esdb-rust-client", cfg.Project.Name)
	assert.Equal(t, "ci/matrix.yaml", cfg.Project.MatrixFile)
	assert.Equal(t, "ghcr.io/eventstore", cfg.Docker.Repository)
	assert.Equal(t, "lts", cfg.Provision.DefaultChannel)
	assert.Equal(t, "23.10", cfg.Provision.Channels["lts"])
	assert.Equal(t, []string{"cargo", "test", "--test", "integration", "--"}, cfg.Run.TestCommand)
	assert.Equal(t, 4, cfg.Run.Concurrency)
	assert.Equal(t, 15*time.Minute, cfg.Run.UnitTimeout.Duration)
	assert.Equal(t, 2*time.Minute, cfg.Run.StartupTimeout.Duration)
	assert.True(t, cfg.Run.Backtrace)
}

func TestLoadFromFile_InvalidDuration(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeConfig(t, dir, `
[run]
unit_timeout = "not-a-duration"
`)

	_, _, err := LoadFromFile(path)
	require.Error(t, err)
}

func TestLoadFromFile_UnknownKeysReported(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeConfig(t, dir, `
[project]
name = "x"
typo_key = "oops"
`)

	_, md, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, md.Undecoded(), "typo_key should be reported as undecoded")
}

func TestFindConfigFile_WalksUp(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeConfig(t, root, sampleConfig)
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := FindConfigFile(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ConfigFileName), found)
}

func TestFindConfigFile_NotFound(t *testing.T) {
	t.Parallel()

	found, err := FindConfigFile(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestLoad_NoFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, path, md, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Nil(t, md)
	assert.Equal(t, NewDefaults(), cfg)
}

func TestLoad_AppliesDefaultsToSparseFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, `
[project]
name = "sparse"

[run]
test_command = ["true"]
`)

	cfg, path, _, err := Load(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, path)

	// Explicit values survive.
	assert.Equal(t, "sparse", cfg.Project.Name)
	assert.Equal(t, []string{"true"}, cfg.Run.TestCommand)

	// Unset values are defaulted.
	assert.Equal(t, "matrix.yaml", cfg.Project.MatrixFile)
	assert.Equal(t, 2, cfg.Run.Concurrency)
	assert.Equal(t, 90*time.Second, cfg.Run.StartupTimeout.Duration)
	assert.Equal(t, "gauntlet", cfg.Docker.ContainerPrefix)
}
