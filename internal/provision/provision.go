// Package provision resolves the server environment for a run: exactly one
// image reference per run, decided before any topology starts. Every
// topology in the run deploys the same resolved image, so a matrix never
// mixes server versions within a single invocation.
package provision

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gauntlet-ci/gauntlet/internal/command"
	"github.com/gauntlet-ci/gauntlet/internal/config"
	"github.com/gauntlet-ci/gauntlet/internal/logging"
)

// EnvironmentRef is the fully-resolved image reference shared by every
// topology in a run.
type EnvironmentRef struct {
	Repository string
	Image      string
	Tag        string
}

// String returns the docker-style reference, e.g.
// "ghcr.io/eventstore/eventstore:24.10".
func (r EnvironmentRef) String() string {
	if r.Repository == "" {
		return r.Image + ":" + r.Tag
	}
	return r.Repository + "/" + r.Image + ":" + r.Tag
}

// Error is a provisioning failure. Provisioning happens before any topology
// starts, so an Error always aborts the whole run with zero units executed.
type Error struct {
	Stage string // "build", "resolve", or "pull"
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provisioning failed during %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Request selects the environment for a run. Both fields are optional;
// Version wins over Channel when both are set.
type Request struct {
	// Channel is a release-channel selector resolved through the
	// [provision.channels] table. Empty means the configured default.
	Channel string

	// Version is an explicit image tag that bypasses channel resolution.
	Version string
}

// Resolver resolves a Request into an EnvironmentRef, running the optional
// build step and image pull on first use. Resolution is idempotent: repeat
// calls within one run return the cached result without re-running side
// effects.
type Resolver struct {
	docker config.DockerConfig
	prov   config.ProvisionConfig
	runner command.Runner
	logger *logging.Logger

	mu     sync.Mutex
	cached map[Request]EnvironmentRef
}

// NewResolver builds a Resolver over the given configuration. The runner
// executes the build command and docker pull.
func NewResolver(docker config.DockerConfig, prov config.ProvisionConfig, runner command.Runner) *Resolver {
	return &Resolver{
		docker: docker,
		prov:   prov,
		runner: runner,
		logger: logging.New("provision"),
		cached: make(map[Request]EnvironmentRef),
	}
}

// Resolve turns the request into a concrete image reference. On first call
// for a given request it runs the configured build command (if any) and
// pulls the image (if enabled); later calls return the cached reference.
func (r *Resolver) Resolve(ctx context.Context, req Request) (EnvironmentRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ref, ok := r.cached[req]; ok {
		return ref, nil
	}

	tag, err := r.resolveTag(req)
	if err != nil {
		return EnvironmentRef{}, &Error{Stage: "resolve", Err: err}
	}

	ref := EnvironmentRef{
		Repository: r.docker.Repository,
		Image:      r.docker.Image,
		Tag:        tag,
	}
	r.logger.Info("resolved environment", "image", ref.String())

	if len(r.prov.BuildCommand) > 0 {
		if err := r.runStep(ctx, "build", r.prov.BuildCommand); err != nil {
			return EnvironmentRef{}, err
		}
	}
	if r.prov.Pull {
		if err := r.runStep(ctx, "pull", []string{"docker", "pull", ref.String()}); err != nil {
			return EnvironmentRef{}, err
		}
	}

	r.cached[req] = ref
	return ref, nil
}

func (r *Resolver) resolveTag(req Request) (string, error) {
	if req.Version != "" {
		return req.Version, nil
	}

	channel := req.Channel
	if channel == "" {
		channel = r.prov.DefaultChannel
	}
	if channel == "" {
		return "", fmt.Errorf("no channel selected and no default_channel configured")
	}

	tag, ok := r.prov.Channels[channel]
	if !ok {
		return "", fmt.Errorf("unknown channel %q (configured: %s)", channel, strings.Join(channelNames(r.prov.Channels), ", "))
	}
	return tag, nil
}

func (r *Resolver) runStep(ctx context.Context, stage string, argv []string) error {
	spec := command.Spec{Name: argv[0], Args: argv[1:]}
	r.logger.Debug("running provision step", "stage", stage, "command", spec.String())

	result, err := r.runner.Run(ctx, spec)
	if err != nil {
		return &Error{Stage: stage, Err: err}
	}
	if !result.Success() {
		return &Error{
			Stage: stage,
			Err:   fmt.Errorf("%s exited with code %d: %s", spec.String(), result.ExitCode, strings.TrimSpace(result.Stderr)),
		}
	}
	return nil
}

func channelNames(channels map[string]string) []string {
	names := make([]string, 0, len(channels))
	for name := range channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
