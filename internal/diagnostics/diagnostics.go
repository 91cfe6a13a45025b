// Package diagnostics builds failure-artifact bundles. A bundle is created
// only for hard failures: it gathers the unit's captured output and the
// topology's server logs under a stable, collision-free directory, and
// optionally mirrors it to an object store for CI retention.
package diagnostics

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"

	"github.com/gauntlet-ci/gauntlet/internal/logging"
)

// defaultGlobs selects the unit artifacts copied into a bundle.
var defaultGlobs = []string{"**/*.log", "**/*.txt", "**/*.json"}

// LogDumper captures server-side logs into a directory. Satisfied by
// *topology.Controller.
type LogDumper interface {
	DumpLogs(ctx context.Context, destDir string) error
}

// Request identifies one hard failure to bundle.
type Request struct {
	RunID    string
	Topology string
	Test     string

	// UnitDir is the unit's working directory holding its captured output.
	UnitDir string

	// Dumper captures the topology's server logs; nil skips that step
	// (the topology may already be gone).
	Dumper LogDumper
}

// Key returns the bundle's stable storage key:
// {topology}_{test}-{xxhash64 of run/topology/test}. The hash suffix keeps
// keys collision-free across runs sharing an artifact directory.
func (r Request) Key() string {
	sum := xxhash.Sum64String(r.RunID + "/" + r.Topology + "/" + r.Test)
	return fmt.Sprintf("%s_%s-%016x", r.Topology, r.Test, sum)
}

// Sink mirrors a finished bundle to external storage.
type Sink interface {
	// Store uploads the bundle directory under the given key.
	Store(ctx context.Context, key, bundleDir string) error
}

// Collector assembles bundles under a base directory and pushes them to
// optional sinks.
type Collector struct {
	baseDir string
	globs   []string
	sinks   []Sink
	logger  *logging.Logger
}

// Option mutates a Collector during construction.
type Option func(*Collector)

// WithGlobs overrides the unit-artifact glob set.
func WithGlobs(globs []string) Option {
	return func(c *Collector) {
		if len(globs) > 0 {
			c.globs = globs
		}
	}
}

// WithSink adds an external storage sink.
func WithSink(s Sink) Option {
	return func(c *Collector) { c.sinks = append(c.sinks, s) }
}

// NewCollector builds a Collector rooted at baseDir.
func NewCollector(baseDir string, opts ...Option) *Collector {
	c := &Collector{
		baseDir: baseDir,
		globs:   defaultGlobs,
		logger:  logging.New("diagnostics"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// bundleMeta is the manifest written into every bundle.
type bundleMeta struct {
	RunID    string `toml:"run_id"`
	Topology string `toml:"topology"`
	Test     string `toml:"test"`
}

// Collect builds the bundle and returns its local path. Sink upload
// failures are logged, not returned: the local bundle is the source of
// truth and a dead object store must not turn a test failure into a
// harness failure.
func (c *Collector) Collect(ctx context.Context, req Request) (string, error) {
	key := req.Key()
	bundleDir := filepath.Join(c.baseDir, key)
	if err := os.MkdirAll(bundleDir, 0o755); err != nil {
		return "", fmt.Errorf("creating bundle dir: %w", err)
	}

	if err := c.writeMeta(bundleDir, req); err != nil {
		return "", err
	}
	if req.UnitDir != "" {
		if err := c.copyUnitArtifacts(req.UnitDir, filepath.Join(bundleDir, "unit")); err != nil {
			return "", err
		}
	}
	if req.Dumper != nil {
		if err := req.Dumper.DumpLogs(ctx, filepath.Join(bundleDir, "server")); err != nil {
			c.logger.Warn("server log capture failed", "bundle", key, "error", err)
		}
	}

	for _, sink := range c.sinks {
		if err := sink.Store(ctx, key, bundleDir); err != nil {
			c.logger.Warn("bundle upload failed", "bundle", key, "error", err)
		}
	}

	c.logger.Info("diagnostic bundle written", "bundle", key, "path", bundleDir)
	return bundleDir, nil
}

func (c *Collector) writeMeta(bundleDir string, req Request) error {
	f, err := os.Create(filepath.Join(bundleDir, "bundle.toml"))
	if err != nil {
		return fmt.Errorf("writing bundle manifest: %w", err)
	}
	defer f.Close()

	meta := bundleMeta{RunID: req.RunID, Topology: req.Topology, Test: req.Test}
	if err := toml.NewEncoder(f).Encode(meta); err != nil {
		return fmt.Errorf("encoding bundle manifest: %w", err)
	}
	return nil
}

// copyUnitArtifacts copies glob-matched files from the unit directory,
// preserving relative paths.
func (c *Collector) copyUnitArtifacts(unitDir, destDir string) error {
	fsys := os.DirFS(unitDir)
	for _, glob := range c.globs {
		matches, err := doublestar.Glob(fsys, glob)
		if err != nil {
			return fmt.Errorf("expanding artifact glob %q: %w", glob, err)
		}
		for _, rel := range matches {
			src := filepath.Join(unitDir, filepath.FromSlash(rel))
			info, err := os.Stat(src)
			if err != nil || info.IsDir() {
				continue
			}
			dest := filepath.Join(destDir, filepath.FromSlash(rel))
			if err := copyFile(src, dest); err != nil {
				return fmt.Errorf("copying artifact %s: %w", rel, err)
			}
		}
	}
	return nil
}

func copyFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
