package diagnostics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gauntlet-ci/gauntlet/internal/config"
)

func configS3() config.S3Config {
	return config.S3Config{
		Endpoint: "localhost:9000",
		Bucket:   "gauntlet-artifacts",
		Region:   "us-east-1",
	}
}

type fakeDumper struct {
	err   error
	calls int
}

func (f *fakeDumper) DumpLogs(ctx context.Context, destDir string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(destDir, "node-0.log"), []byte("server log\n"), 0o644)
}

type recordingSink struct {
	keys []string
	err  error
}

func (r *recordingSink) Store(ctx context.Context, key, bundleDir string) error {
	r.keys = append(r.keys, key)
	return r.err
}

func makeUnitDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stdout.log"), []byte("out\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stderr.log"), []byte("err\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "trace.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "core.bin"), []byte{0x7f}, 0o644))
	return dir
}

func TestRequestKey_StableAndDistinct(t *testing.T) {
	t.Parallel()

	a := Request{RunID: "run-1", Topology: "single", Test: "streams"}
	b := Request{RunID: "run-1", Topology: "single", Test: "streams"}
	c := Request{RunID: "run-2", Topology: "single", Test: "streams"}

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
	assert.Contains(t, a.Key(), "single_streams-")
}

func TestCollect_BuildsBundle(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	dumper := &fakeDumper{}
	c := NewCollector(base)

	path, err := c.Collect(context.Background(), Request{
		RunID:    "run-1",
		Topology: "single",
		Test:     "streams",
		UnitDir:  makeUnitDir(t),
		Dumper:   dumper,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, dumper.calls)

	assert.FileExists(t, filepath.Join(path, "bundle.toml"))
	assert.FileExists(t, filepath.Join(path, "unit", "stdout.log"))
	assert.FileExists(t, filepath.Join(path, "unit", "stderr.log"))
	assert.FileExists(t, filepath.Join(path, "unit", "nested", "trace.json"))
	assert.NoFileExists(t, filepath.Join(path, "unit", "core.bin"), "unmatched files stay out of the bundle")
	assert.FileExists(t, filepath.Join(path, "server", "node-0.log"))

	meta, err := os.ReadFile(filepath.Join(path, "bundle.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(meta), `run_id = "run-1"`)
	assert.Contains(t, string(meta), `test = "streams"`)
}

func TestCollect_CustomGlobs(t *testing.T) {
	t.Parallel()

	c := NewCollector(t.TempDir(), WithGlobs([]string{"*.bin"}))
	path, err := c.Collect(context.Background(), Request{
		RunID: "run-1", Topology: "single", Test: "streams",
		UnitDir: makeUnitDir(t),
	})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(path, "unit", "core.bin"))
	assert.NoFileExists(t, filepath.Join(path, "unit", "stdout.log"))
}

func TestCollect_DumperFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	c := NewCollector(t.TempDir())
	path, err := c.Collect(context.Background(), Request{
		RunID: "run-1", Topology: "single", Test: "streams",
		UnitDir: makeUnitDir(t),
		Dumper:  &fakeDumper{err: errors.New("container already removed")},
	})

	require.NoError(t, err, "a vanished topology must not break bundle creation")
	assert.FileExists(t, filepath.Join(path, "unit", "stdout.log"))
}

func TestCollect_SinksReceiveBundle(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	c := NewCollector(t.TempDir(), WithSink(sink))

	req := Request{RunID: "run-1", Topology: "single", Test: "streams", UnitDir: makeUnitDir(t)}
	_, err := c.Collect(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{req.Key()}, sink.keys)
}

func TestCollect_SinkFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{err: errors.New("bucket unreachable")}
	c := NewCollector(t.TempDir(), WithSink(sink))

	path, err := c.Collect(context.Background(), Request{
		RunID: "run-1", Topology: "single", Test: "streams", UnitDir: makeUnitDir(t),
	})
	require.NoError(t, err)
	assert.DirExists(t, path, "local bundle survives sink failure")
}

func TestCollect_NoUnitDir(t *testing.T) {
	t.Parallel()

	c := NewCollector(t.TempDir())
	path, err := c.Collect(context.Background(), Request{
		RunID: "run-1", Topology: "single", Test: "streams",
	})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(path, "bundle.toml"))
}

func TestNewS3Sink_RequiresCredentials(t *testing.T) {
	t.Setenv(EnvS3AccessKey, "")
	t.Setenv(EnvS3SecretKey, "")

	_, err := NewS3Sink(configS3())
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvS3AccessKey)
}

func TestNewS3Sink_WithCredentials(t *testing.T) {
	t.Setenv(EnvS3AccessKey, "minioadmin")
	t.Setenv(EnvS3SecretKey, "minioadmin")

	sink, err := NewS3Sink(configS3())
	require.NoError(t, err)
	assert.NotNil(t, sink)
}
