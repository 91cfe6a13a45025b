// Package scheduler dispatches the expanded matrix: topologies run
// concurrently, units fan out within each topology under a concurrency
// limit, and every unit runs to completion regardless of sibling failures.
// Fail-fast is deliberately absent; the run's verdict is decided by the
// aggregator after all outcomes are in.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gauntlet-ci/gauntlet/internal/command"
	"github.com/gauntlet-ci/gauntlet/internal/logging"
	"github.com/gauntlet-ci/gauntlet/internal/matrix"
	"github.com/gauntlet-ci/gauntlet/internal/provision"
	"github.com/gauntlet-ci/gauntlet/internal/topology"
)

// TopologyController is the lifecycle surface the scheduler drives. It is
// satisfied by *topology.Controller.
type TopologyController interface {
	Name() string
	Kind() topology.Kind
	CaptureEnabled() bool
	Start(ctx context.Context) error
	Teardown(ctx context.Context)
	Params() (topology.ConnectionParams, bool)
	DumpLogs(ctx context.Context, destDir string) error
}

// Assignment binds one topology controller to the units that run under it.
type Assignment struct {
	Controller TopologyController
	Units      []matrix.Unit
}

// CollectFunc builds a diagnostic bundle for a hard failure and returns its
// location. The scheduler invokes it only for non-tolerated failures under
// capture-enabled topologies.
type CollectFunc func(ctx context.Context, outcome UnitOutcome, ctrl TopologyController) (string, error)

// Options configures a Scheduler.
type Options struct {
	// Runner executes test commands.
	Runner command.Runner

	// TestCommand is the argv prefix every unit runs; the unit's
	// "{kind}_{test}" argument is appended.
	TestCommand []string

	// Concurrency bounds concurrent units within one topology. Values
	// below 1 mean 1.
	Concurrency int

	// UnitTimeout bounds one unit's wall-clock time. Zero means unbounded.
	UnitTimeout time.Duration

	// Image is the resolved environment, exported to units.
	Image provision.EnvironmentRef

	// LogDir is the run-scoped directory; each unit gets a subdirectory.
	LogDir string

	// LogLevel and Backtrace are exported to units as GAUNTLET_LOG and
	// GAUNTLET_BACKTRACE.
	LogLevel  string
	Backtrace bool

	// ExtraEnv is appended to every unit's environment.
	ExtraEnv map[string]string

	// Events receives progress notifications; nil disables them.
	Events chan<- Event

	// Collect builds failure bundles; nil disables collection.
	Collect CollectFunc
}

// Scheduler runs assignments to completion and gathers outcomes.
type Scheduler struct {
	opts   Options
	logger *logging.Logger
}

// New builds a Scheduler.
func New(opts Options) *Scheduler {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Scheduler{opts: opts, logger: logging.New("scheduler")}
}

// Schedule executes every assignment and returns one outcome per unit,
// ordered by topology then test. Unit and topology failures are data, not
// errors: the returned error is non-nil only for harness-level faults such
// as an unwritable log directory or context cancellation.
//
// Teardown of every started topology is guaranteed, including on failed
// starts, cancellation, and panics inside unit execution.
func (s *Scheduler) Schedule(ctx context.Context, assignments []Assignment) ([]UnitOutcome, error) {
	var (
		mu       sync.Mutex
		outcomes []UnitOutcome
	)
	record := func(out UnitOutcome) {
		mu.Lock()
		outcomes = append(outcomes, out)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range assignments {
		a := a
		g.Go(func() error {
			// Teardown must run even when gctx is already cancelled.
			defer a.Controller.Teardown(context.WithoutCancel(ctx))
			return s.runTopology(gctx, a, record)
		})
	}
	err := g.Wait()

	sort.Slice(outcomes, func(i, j int) bool {
		if outcomes[i].Unit.Topology != outcomes[j].Unit.Topology {
			return outcomes[i].Unit.Topology < outcomes[j].Unit.Topology
		}
		return outcomes[i].Unit.Test < outcomes[j].Unit.Test
	})
	return outcomes, err
}

func (s *Scheduler) runTopology(ctx context.Context, a Assignment, record func(UnitOutcome)) error {
	name := a.Controller.Name()
	emit(s.opts.Events, Event{Type: EventTopologyStarting, Topology: name})

	if err := a.Controller.Start(ctx); err != nil {
		// A dead topology takes down only its own units. Siblings keep
		// running, so this is recorded, not returned.
		s.logger.Error("topology failed to start", "topology", name, "error", err)
		emit(s.opts.Events, Event{Type: EventTopologyFailed, Topology: name, Message: err.Error()})
		for _, u := range a.Units {
			out := UnitOutcome{
				Unit:     u,
				Status:   failureStatus(u),
				Reason:   ReasonTopologyUnavailable,
				ExitCode: -1,
			}
			record(out)
			emit(s.opts.Events, Event{Type: EventUnitFinished, Topology: name, Unit: u.ID(), Status: out.Status, Message: err.Error()})
		}
		return nil
	}
	emit(s.opts.Events, Event{Type: EventTopologyReady, Topology: name})
	defer emit(s.opts.Events, Event{Type: EventTopologyStopped, Topology: name})

	inner, ictx := errgroup.WithContext(ctx)
	inner.SetLimit(s.opts.Concurrency)
	for _, u := range a.Units {
		u := u
		inner.Go(func() error {
			out, err := s.runUnit(ictx, a.Controller, u)
			if err != nil {
				return err
			}
			record(out)
			return nil
		})
	}
	return inner.Wait()
}

func (s *Scheduler) runUnit(ctx context.Context, ctrl TopologyController, u matrix.Unit) (UnitOutcome, error) {
	unitDir := filepath.Join(s.opts.LogDir, u.ID())
	if err := os.MkdirAll(unitDir, 0o755); err != nil {
		return UnitOutcome{}, fmt.Errorf("creating unit dir for %s: %w", u.ID(), err)
	}

	emit(s.opts.Events, Event{Type: EventUnitStarted, Topology: u.Topology, Unit: u.ID()})
	s.logger.Debug("dispatching unit", "unit", u.ID())

	spec := command.Spec{
		Name:    s.opts.TestCommand[0],
		Args:    append(append([]string{}, s.opts.TestCommand[1:]...), fmt.Sprintf("%s_%s", u.Kind, u.Test)),
		WorkDir: unitDir,
		Env:     s.unitEnv(ctrl),
		Timeout: s.opts.UnitTimeout,
	}

	out := UnitOutcome{Unit: u, LogDir: unitDir, ExitCode: -1}
	result, err := s.opts.Runner.Run(ctx, spec)
	if err != nil {
		out.Status = failureStatus(u)
		out.Reason = ReasonExecError
		s.logger.Error("unit execution error", "unit", u.ID(), "error", err)
	} else {
		out.ExitCode = result.ExitCode
		out.Duration = result.Duration
		s.writeUnitLogs(unitDir, result)
		if result.Success() {
			out.Status = StatusPassed
		} else {
			out.Status = failureStatus(u)
		}
	}

	if out.Hard() && ctrl.CaptureEnabled() && s.opts.Collect != nil {
		bundle, cerr := s.opts.Collect(ctx, out, ctrl)
		if cerr != nil {
			s.logger.Warn("diagnostic collection failed", "unit", u.ID(), "error", cerr)
		} else {
			out.BundlePath = bundle
		}
	}

	emit(s.opts.Events, Event{Type: EventUnitFinished, Topology: u.Topology, Unit: u.ID(), Status: out.Status})
	s.logger.Info("unit finished", "unit", u.ID(), "status", out.Status, "exit_code", out.ExitCode, "duration", out.Duration)
	return out, nil
}

// unitEnv builds the environment bag exported to every test process.
func (s *Scheduler) unitEnv(ctrl TopologyController) []string {
	env := []string{
		"GAUNTLET_DOCKER_REPO=" + s.opts.Image.Repository,
		"GAUNTLET_DOCKER_IMAGE=" + s.opts.Image.Image,
		"GAUNTLET_DOCKER_TAG=" + s.opts.Image.Tag,
	}

	if params, ok := ctrl.Params(); ok {
		env = append(env,
			"GAUNTLET_ENDPOINTS="+strings.Join(params.Endpoints, ","),
			"GAUNTLET_CONNECTION_STRING="+params.ConnectionString(),
			"GAUNTLET_SECURE="+strconv.FormatBool(params.Secure),
		)
		if params.CertDir != "" {
			env = append(env, "GAUNTLET_CERTS="+params.CertDir)
		}
		if ctrl.Kind() == topology.KindCluster {
			env = append(env, "GAUNTLET_CLUSTER_SIZE="+strconv.Itoa(len(params.Endpoints)))
		}
	}

	if s.opts.LogLevel != "" {
		env = append(env, "GAUNTLET_LOG="+s.opts.LogLevel)
	}
	if s.opts.Backtrace {
		env = append(env, "GAUNTLET_BACKTRACE=1")
	}

	keys := make([]string, 0, len(s.opts.ExtraEnv))
	for k := range s.opts.ExtraEnv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+s.opts.ExtraEnv[k])
	}
	return env
}

func (s *Scheduler) writeUnitLogs(unitDir string, result *command.Result) {
	if err := os.WriteFile(filepath.Join(unitDir, "stdout.log"), []byte(result.Stdout), 0o644); err != nil {
		s.logger.Warn("writing unit stdout failed", "error", err)
	}
	if err := os.WriteFile(filepath.Join(unitDir, "stderr.log"), []byte(result.Stderr), 0o644); err != nil {
		s.logger.Warn("writing unit stderr failed", "error", err)
	}
}

// failureStatus maps a unit's tolerance flag to its failure status.
func failureStatus(u matrix.Unit) Status {
	if u.Tolerated {
		return StatusFailedTolerated
	}
	return StatusFailed
}
