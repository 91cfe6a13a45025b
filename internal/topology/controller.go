package topology

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gauntlet-ci/gauntlet/internal/command"
	"github.com/gauntlet-ci/gauntlet/internal/logging"
	"github.com/gauntlet-ci/gauntlet/internal/provision"
)

// containerPort is the gRPC port the server listens on inside its container.
const containerPort = 2113

// defaultPollInterval is the readiness probe cadence.
const defaultPollInterval = 500 * time.Millisecond

// Options configures a Controller beyond its Spec.
type Options struct {
	// Runner executes docker commands.
	Runner command.Runner

	// Prober checks endpoint readiness. Nil means a TCPProber.
	Prober Prober

	// ContainerPrefix namespaces container and network names so concurrent
	// runs on one host do not collide.
	ContainerPrefix string

	// StartupTimeout bounds the whole Start call, certificate generation
	// and readiness polling included.
	StartupTimeout time.Duration

	// PollInterval overrides the readiness probe cadence. Zero means 500ms.
	PollInterval time.Duration

	// WorkDir is the topology's scratch directory; secure deployments keep
	// their generated certificates under it.
	WorkDir string

	// CertCommand overrides the certificate-generation command for secure
	// deployments (argv form). Empty means the bundled es-gencert-cli image.
	CertCommand []string
}

// Controller deploys one topology as docker containers and tears it down.
// Start and Teardown are not safe to call concurrently with each other;
// Teardown is idempotent and valid from any state, including after a failed
// Start, so callers can defer it unconditionally.
type Controller struct {
	spec   Spec
	image  provision.EnvironmentRef
	opts   Options
	logger *logging.Logger

	mu         sync.Mutex
	state      State
	containers []string
	network    string
	params     ConnectionParams

	teardown sync.Once
}

// NewController builds a Controller for the given spec and resolved image.
func NewController(spec Spec, image provision.EnvironmentRef, opts Options) *Controller {
	if opts.Prober == nil {
		opts.Prober = &TCPProber{}
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = defaultPollInterval
	}
	return &Controller{
		spec:   spec,
		image:  image,
		opts:   opts,
		logger: logging.New("topology." + spec.Name),
	}
}

// Name returns the matrix-declared topology name.
func (c *Controller) Name() string { return c.spec.Name }

// Kind returns the deployment shape.
func (c *Controller) Kind() Kind { return c.spec.Kind }

// CaptureEnabled reports whether failure artifacts are collected for units
// under this topology.
func (c *Controller) CaptureEnabled() bool { return c.spec.Capture }

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Params returns the connection parameters of a ready topology. The second
// return is false until Start has succeeded.
func (c *Controller) Params() (ConnectionParams, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params, c.state == StateReady
}

// Start deploys the topology and blocks until every node is ready or the
// startup window expires. On failure the containers created so far are left
// for Teardown to remove, so the caller must still call Teardown.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateUninitialized {
		state := c.state
		c.mu.Unlock()
		return &StartupError{Topology: c.spec.Name, Err: fmt.Errorf("start called in state %s", state)}
	}
	c.state = StateStarting
	c.mu.Unlock()

	if c.opts.StartupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.StartupTimeout)
		defer cancel()
	}

	err := c.start(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateFailedStart
		return err
	}
	c.state = StateReady
	return nil
}

func (c *Controller) start(ctx context.Context) error {
	c.logger.Info("starting topology", "kind", c.spec.Kind, "nodes", c.spec.Nodes, "image", c.image.String())

	certDir := ""
	if c.spec.Kind == KindSecure {
		var err error
		certDir, err = c.generateCerts(ctx)
		if err != nil {
			return err
		}
	}

	if c.spec.Nodes > 1 {
		if err := c.createNetwork(ctx); err != nil {
			return err
		}
	}

	endpoints := make([]string, 0, c.spec.Nodes)
	for i := 0; i < c.spec.Nodes; i++ {
		if err := c.startNode(ctx, i, certDir); err != nil {
			return err
		}
		endpoints = append(endpoints, fmt.Sprintf("127.0.0.1:%d", c.spec.BasePort+i))
	}

	params := ConnectionParams{
		Endpoints: endpoints,
		Secure:    c.spec.Kind == KindSecure,
		CertDir:   certDir,
	}
	if err := c.waitReady(ctx, params.Endpoints); err != nil {
		return err
	}

	c.mu.Lock()
	c.params = params
	c.mu.Unlock()

	c.logger.Info("topology ready", "endpoints", strings.Join(endpoints, ","))
	return nil
}

// generateCerts produces a CA and node certificate under the topology's
// work directory and returns the directory path.
func (c *Controller) generateCerts(ctx context.Context) (string, error) {
	certDir := filepath.Join(c.opts.WorkDir, "certs")
	if err := os.MkdirAll(certDir, 0o755); err != nil {
		return "", &StartupError{Topology: c.spec.Name, Err: fmt.Errorf("creating cert dir: %w", err)}
	}

	argv := c.opts.CertCommand
	if len(argv) == 0 {
		argv = []string{
			"docker", "run", "--rm",
			"-v", certDir + ":/certs",
			c.image.Repository + "/es-gencert-cli:latest",
			"create-dev-certs", "--certs-root", "/certs", "--force",
		}
	}

	c.logger.Debug("generating certificates", "dir", certDir)
	if err := c.runDocker(ctx, "certificate generation", argv); err != nil {
		return "", err
	}
	return certDir, nil
}

func (c *Controller) createNetwork(ctx context.Context) error {
	network := fmt.Sprintf("%s-%s-net", c.opts.ContainerPrefix, c.spec.Name)
	if err := c.runDocker(ctx, "network create", []string{"docker", "network", "create", network}); err != nil {
		return err
	}
	c.mu.Lock()
	c.network = network
	c.mu.Unlock()
	return nil
}

func (c *Controller) startNode(ctx context.Context, index int, certDir string) error {
	name := c.containerName(index)
	hostPort := c.spec.BasePort + index

	argv := []string{
		"docker", "run", "-d",
		"--name", name,
		"-p", fmt.Sprintf("%d:%d", hostPort, containerPort),
		"-e", "EVENTSTORE_MEM_DB=true",
	}

	switch c.spec.Kind {
	case KindSecure:
		argv = append(argv,
			"-v", certDir+":/etc/eventstore/certs:ro",
			"-e", "EVENTSTORE_CERTIFICATE_FILE=/etc/eventstore/certs/node/node.crt",
			"-e", "EVENTSTORE_CERTIFICATE_PRIVATE_KEY_FILE=/etc/eventstore/certs/node/node.key",
			"-e", "EVENTSTORE_TRUSTED_ROOT_CERTIFICATES_PATH=/etc/eventstore/certs/ca",
		)
	case KindCluster:
		seeds := make([]string, 0, c.spec.Nodes-1)
		for i := 0; i < c.spec.Nodes; i++ {
			if i != index {
				seeds = append(seeds, fmt.Sprintf("%s:%d", c.containerName(i), containerPort))
			}
		}
		argv = append(argv,
			"--network", c.networkName(),
			"-e", "EVENTSTORE_INSECURE=true",
			"-e", fmt.Sprintf("EVENTSTORE_CLUSTER_SIZE=%d", c.spec.Nodes),
			"-e", "EVENTSTORE_DISCOVER_VIA_DNS=false",
			"-e", "EVENTSTORE_GOSSIP_SEED="+strings.Join(seeds, ","),
		)
	default:
		argv = append(argv, "-e", "EVENTSTORE_INSECURE=true")
	}

	argv = append(argv, c.image.String())

	// Record the name before running: a partially-created container must
	// still be removed during teardown.
	c.mu.Lock()
	c.containers = append(c.containers, name)
	c.mu.Unlock()

	return c.runDocker(ctx, "container start", argv)
}

func (c *Controller) containerName(index int) string {
	return fmt.Sprintf("%s-%s-%d", c.opts.ContainerPrefix, c.spec.Name, index)
}

func (c *Controller) networkName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.network
}

func (c *Controller) runDocker(ctx context.Context, stage string, argv []string) error {
	result, err := c.opts.Runner.Run(ctx, command.Spec{Name: argv[0], Args: argv[1:]})
	if err != nil {
		return &StartupError{Topology: c.spec.Name, Err: fmt.Errorf("%s: %w", stage, err)}
	}
	if !result.Success() {
		return &StartupError{
			Topology: c.spec.Name,
			Err:      fmt.Errorf("%s exited with code %d: %s", stage, result.ExitCode, strings.TrimSpace(result.Stderr)),
		}
	}
	return nil
}

// waitReady polls every endpoint until all respond or ctx expires.
func (c *Controller) waitReady(ctx context.Context, endpoints []string) error {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		lastErr = nil
		for _, ep := range endpoints {
			if err := c.opts.Prober.Probe(ctx, ep); err != nil {
				lastErr = err
				break
			}
		}
		if lastErr == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			// A cancelled run is not a startup timeout: only report the
			// timeout when the startup window itself expired.
			if errors.Is(ctx.Err(), context.Canceled) {
				return &StartupError{
					Topology: c.spec.Name,
					Err:      fmt.Errorf("startup interrupted: %w", ctx.Err()),
				}
			}
			return &StartupTimeoutError{
				Topology: c.spec.Name,
				Timeout:  c.opts.StartupTimeout,
				LastErr:  lastErr,
			}
		case <-ticker.C:
		}
	}
}

// Teardown removes every container and network the topology created. It is
// safe to call from any state and runs at most once; repeat calls are
// no-ops. Removal errors are logged, never returned: teardown must not mask
// the failure that triggered it.
func (c *Controller) Teardown(ctx context.Context) {
	c.teardown.Do(func() {
		c.mu.Lock()
		c.state = StateTearingDown
		containers := make([]string, len(c.containers))
		copy(containers, c.containers)
		network := c.network
		c.mu.Unlock()

		for _, name := range containers {
			result, err := c.opts.Runner.Run(ctx, command.Spec{
				Name: "docker",
				Args: []string{"rm", "-f", name},
			})
			if err != nil {
				c.logger.Warn("container removal failed", "container", name, "error", err)
			} else if !result.Success() {
				c.logger.Warn("container removal failed", "container", name, "stderr", strings.TrimSpace(result.Stderr))
			}
		}

		if network != "" {
			if _, err := c.opts.Runner.Run(ctx, command.Spec{
				Name: "docker",
				Args: []string{"network", "rm", network},
			}); err != nil {
				c.logger.Warn("network removal failed", "network", network, "error", err)
			}
		}

		c.mu.Lock()
		c.state = StateTerminated
		c.mu.Unlock()
		c.logger.Debug("topology terminated", "containers", len(containers))
	})
}

// DumpLogs captures each container's logs into destDir, one file per
// container. Called by the diagnostics collector on hard unit failures.
func (c *Controller) DumpLogs(ctx context.Context, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("creating log dump dir: %w", err)
	}

	c.mu.Lock()
	containers := make([]string, len(c.containers))
	copy(containers, c.containers)
	c.mu.Unlock()

	for _, name := range containers {
		result, err := c.opts.Runner.Run(ctx, command.Spec{
			Name: "docker",
			Args: []string{"logs", name},
		})
		if err != nil {
			return fmt.Errorf("capturing logs for %s: %w", name, err)
		}

		path := filepath.Join(destDir, name+".log")
		content := result.Stdout
		if result.Stderr != "" {
			content += result.Stderr
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing log dump %s: %w", path, err)
		}
	}
	return nil
}
