package config

import "time"

// Config is the top-level configuration structure mapping to gauntlet.toml.
type Config struct {
	Project   ProjectConfig   `toml:"project"`
	Docker    DockerConfig    `toml:"docker"`
	Provision ProvisionConfig `toml:"provision"`
	Run       RunConfig       `toml:"run"`
	Artifacts ArtifactsConfig `toml:"artifacts"`
}

// ProjectConfig maps to the [project] section in gauntlet.toml.
type ProjectConfig struct {
	Name       string `toml:"name"`
	MatrixFile string `toml:"matrix_file"`
	LogDir     string `toml:"log_dir"`
}

// DockerConfig maps to the [docker] section. It names the server image that
// every topology in a run deploys. The tag is resolved per run by the
// provisioner and is not part of the static configuration.
type DockerConfig struct {
	// Repository is the registry path, e.g. "ghcr.io/eventstore".
	Repository string `toml:"repository"`

	// Image is the image name within the repository.
	Image string `toml:"image"`

	// ContainerPrefix is prepended to every container name so that
	// concurrent runs on the same host do not collide.
	ContainerPrefix string `toml:"container_prefix"`
}

// ProvisionConfig maps to the [provision] section. Channels translate a
// release-channel selector ("stable", "lts", "ci", ...) into a concrete
// image tag.
type ProvisionConfig struct {
	// DefaultChannel is used when no selector is given on the command line.
	DefaultChannel string `toml:"default_channel"`

	// Channels maps selector names to image tags.
	Channels map[string]string `toml:"channels"`

	// Pull controls whether the resolved image is pulled before topologies
	// start. Disable for images built locally.
	Pull bool `toml:"pull"`

	// BuildCommand, when non-empty, is run before resolution to build and
	// publish a local image (argv form). The engine treats it as an opaque
	// command.
	BuildCommand []string `toml:"build_command"`
}

// RunConfig maps to the [run] section and carries per-unit execution
// settings.
type RunConfig struct {
	// TestCommand is the argv prefix for every execution unit. The unit's
	// "{topology_kind}_{test_identifier}" argument is appended to it.
	TestCommand []string `toml:"test_command"`

	// Concurrency bounds concurrent units within one topology.
	Concurrency int `toml:"concurrency"`

	// UnitTimeout bounds a single unit's wall-clock time.
	UnitTimeout Duration `toml:"unit_timeout"`

	// StartupTimeout bounds a topology's readiness wait.
	StartupTimeout Duration `toml:"startup_timeout"`

	// LogLevel is exported to every unit as GAUNTLET_LOG.
	LogLevel string `toml:"log_level"`

	// Backtrace, when true, exports GAUNTLET_BACKTRACE=1 to every unit so
	// crashing test processes emit stack traces.
	Backtrace bool `toml:"backtrace"`

	// Env is an extra environment bag appended to every unit.
	Env map[string]string `toml:"env"`
}

// ArtifactsConfig maps to the [artifacts] section and configures failure
// diagnostic sinks.
type ArtifactsConfig struct {
	// Dir is the local bundle directory. Always active.
	Dir string `toml:"dir"`

	// S3 configures an optional S3-compatible object-store sink. Inactive
	// when Endpoint is empty.
	S3 S3Config `toml:"s3"`
}

// S3Config holds the object-store sink coordinates. Credentials are read
// from GAUNTLET_S3_ACCESS_KEY / GAUNTLET_S3_SECRET_KEY, never from the file.
type S3Config struct {
	Endpoint string `toml:"endpoint"`
	Bucket   string `toml:"bucket"`
	Region   string `toml:"region"`
	UseSSL   bool   `toml:"use_ssl"`
}

// Duration wraps time.Duration so TOML values can be written as "90s", "10m".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler so configs round-trip.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
