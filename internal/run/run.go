// Package run is the driver behind `gauntlet run`: it expands the matrix,
// resolves the environment, deploys topologies, schedules units, and
// aggregates the verdict. The ordering contract is strict: the environment
// is resolved exactly once, before any topology starts, so every topology
// in a run deploys the same image.
package run

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gauntlet-ci/gauntlet/internal/command"
	"github.com/gauntlet-ci/gauntlet/internal/config"
	"github.com/gauntlet-ci/gauntlet/internal/diagnostics"
	"github.com/gauntlet-ci/gauntlet/internal/logging"
	"github.com/gauntlet-ci/gauntlet/internal/matrix"
	"github.com/gauntlet-ci/gauntlet/internal/provision"
	"github.com/gauntlet-ci/gauntlet/internal/report"
	"github.com/gauntlet-ci/gauntlet/internal/scheduler"
	"github.com/gauntlet-ci/gauntlet/internal/topology"
)

// basePort is the first host port handed to topologies; each topology gets
// a disjoint block of portStride ports so concurrent deployments never
// collide on the host.
const (
	basePort   = 2113
	portStride = 100
)

// Request selects what one invocation executes.
type Request struct {
	// Channel and Version select the environment; see provision.Request.
	Channel string
	Version string

	// MatrixFile overrides the configured matrix path.
	MatrixFile string
}

// Driver executes runs against a loaded configuration.
type Driver struct {
	cfg    *config.Config
	runner command.Runner
	prober topology.Prober
	events chan<- scheduler.Event
	logger *logging.Logger
}

// Option mutates a Driver during construction.
type Option func(*Driver)

// WithRunner substitutes the command runner; tests inject mocks here.
func WithRunner(r command.Runner) Option {
	return func(d *Driver) { d.runner = r }
}

// WithProber substitutes the readiness prober.
func WithProber(p topology.Prober) Option {
	return func(d *Driver) { d.prober = p }
}

// WithEvents attaches a progress-event channel.
func WithEvents(ch chan<- scheduler.Event) Option {
	return func(d *Driver) { d.events = ch }
}

// NewDriver builds a Driver over the given configuration.
func NewDriver(cfg *config.Config, opts ...Option) *Driver {
	d := &Driver{
		cfg:    cfg,
		runner: command.NewExecRunner(nil),
		prober: &topology.TCPProber{},
		logger: logging.New("run"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Plan expands and validates the matrix without executing anything.
func (d *Driver) Plan(req Request) (*matrix.Plan, error) {
	path := req.MatrixFile
	if path == "" {
		path = d.cfg.Project.MatrixFile
	}
	doc, err := matrix.Load(path)
	if err != nil {
		return nil, err
	}
	return matrix.BuildPlan(doc)
}

// Execute runs the full matrix and returns the aggregated summary. The
// returned error covers harness-level faults only (bad matrix, provisioning
// failure, unwritable directories); test and topology failures are part of
// the summary.
func (d *Driver) Execute(ctx context.Context, req Request) (report.Summary, error) {
	started := time.Now()

	plan, err := d.Plan(req)
	if err != nil {
		return report.Summary{}, err
	}
	d.logger.Info("matrix expanded", "run_id", plan.RunID, "topologies", len(plan.Topologies), "units", len(plan.Units()))

	// Environment resolution happens exactly once, before any topology
	// starts. A provisioning failure aborts the run with zero units
	// executed.
	resolver := provision.NewResolver(d.cfg.Docker, d.cfg.Provision, d.runner)
	image, err := resolver.Resolve(ctx, provision.Request{Channel: req.Channel, Version: req.Version})
	if err != nil {
		return report.Summary{}, err
	}

	logDir := filepath.Join(d.cfg.Project.LogDir, plan.RunID)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return report.Summary{}, fmt.Errorf("creating run log dir: %w", err)
	}

	collector, err := d.buildCollector()
	if err != nil {
		return report.Summary{}, err
	}

	assignments := make([]scheduler.Assignment, 0, len(plan.Topologies))
	for i, tp := range plan.Topologies {
		ctrl := topology.NewController(
			topology.Spec{
				Name:     tp.Name,
				Kind:     tp.Kind,
				Nodes:    tp.Nodes,
				BasePort: basePort + i*portStride,
				Capture:  tp.Capture,
			},
			image,
			topology.Options{
				Runner:          d.runner,
				Prober:          d.prober,
				ContainerPrefix: d.cfg.Docker.ContainerPrefix + "-" + shortRunID(plan.RunID),
				StartupTimeout:  d.cfg.Run.StartupTimeout.Duration,
				WorkDir:         filepath.Join(logDir, tp.Name),
				CertCommand:     tp.CertCommand,
			},
		)
		assignments = append(assignments, scheduler.Assignment{Controller: ctrl, Units: tp.Units})
	}

	sched := scheduler.New(scheduler.Options{
		Runner:      d.runner,
		TestCommand: d.cfg.Run.TestCommand,
		Concurrency: d.cfg.Run.Concurrency,
		UnitTimeout: d.cfg.Run.UnitTimeout.Duration,
		Image:       image,
		LogDir:      logDir,
		LogLevel:    d.cfg.Run.LogLevel,
		Backtrace:   d.cfg.Run.Backtrace,
		ExtraEnv:    d.cfg.Run.Env,
		Events:      d.events,
		Collect: func(ctx context.Context, out scheduler.UnitOutcome, ctrl scheduler.TopologyController) (string, error) {
			return collector.Collect(ctx, diagnostics.Request{
				RunID:    plan.RunID,
				Topology: out.Unit.Topology,
				Test:     out.Unit.Test,
				UnitDir:  out.LogDir,
				Dumper:   ctrl,
			})
		},
	})

	outcomes, err := sched.Schedule(ctx, assignments)
	if err != nil {
		return report.Summary{}, err
	}

	summary := report.Aggregate(plan.RunID, image.String(), time.Since(started), outcomes)
	d.logger.Info("run finished",
		"run_id", plan.RunID,
		"passed", summary.Passed,
		"failed", summary.FailedHard,
		"tolerated", summary.FailedTolerated,
		"verdict", verdict(summary),
	)
	return summary, nil
}

func (d *Driver) buildCollector() (*diagnostics.Collector, error) {
	opts := []diagnostics.Option{}
	if d.cfg.Artifacts.S3.Endpoint != "" {
		sink, err := diagnostics.NewS3Sink(d.cfg.Artifacts.S3)
		if err != nil {
			return nil, err
		}
		opts = append(opts, diagnostics.WithSink(sink))
	}
	return diagnostics.NewCollector(d.cfg.Artifacts.Dir, opts...), nil
}

// shortRunID keeps container names readable; the full UUID stays in logs
// and artifact keys.
func shortRunID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}

func verdict(s report.Summary) string {
	if s.Failed() {
		return "failed"
	}
	return "passed"
}
