package config

import "time"

// NewDefaults returns a Config populated with all default values. The
// defaults describe a local single-host run against the public server image.
func NewDefaults() *Config {
	return &Config{
		Project: ProjectConfig{
			Name:       "client-integration",
			MatrixFile: "matrix.yaml",
			LogDir:     ".gauntlet/logs",
		},
		Docker: DockerConfig{
			Repository:      "ghcr.io/eventstore",
			Image:           "eventstore",
			ContainerPrefix: "gauntlet",
		},
		Provision: ProvisionConfig{
			DefaultChannel: "stable",
			Channels: map[string]string{
				"stable": "latest",
				"lts":    "lts",
				"ci":     "ci",
			},
			Pull: true,
		},
		Run: RunConfig{
			Concurrency:    2,
			UnitTimeout:    Duration{10 * time.Minute},
			StartupTimeout: Duration{90 * time.Second},
			LogLevel:       "info",
			Backtrace:      true,
			Env:            map[string]string{},
		},
		Artifacts: ArtifactsConfig{
			Dir: ".gauntlet/artifacts",
			S3: S3Config{
				UseSSL: true,
			},
		},
	}
}

// ApplyDefaults fills zero-valued fields of cfg from NewDefaults. Explicit
// values from the file always win; maps are left as loaded when non-nil.
func ApplyDefaults(cfg *Config) {
	def := NewDefaults()

	if cfg.Project.Name == "" {
		cfg.Project.Name = def.Project.Name
	}
	if cfg.Project.MatrixFile == "" {
		cfg.Project.MatrixFile = def.Project.MatrixFile
	}
	if cfg.Project.LogDir == "" {
		cfg.Project.LogDir = def.Project.LogDir
	}

	if cfg.Docker.Repository == "" {
		cfg.Docker.Repository = def.Docker.Repository
	}
	if cfg.Docker.Image == "" {
		cfg.Docker.Image = def.Docker.Image
	}
	if cfg.Docker.ContainerPrefix == "" {
		cfg.Docker.ContainerPrefix = def.Docker.ContainerPrefix
	}

	if cfg.Provision.DefaultChannel == "" {
		cfg.Provision.DefaultChannel = def.Provision.DefaultChannel
	}
	if cfg.Provision.Channels == nil {
		cfg.Provision.Channels = def.Provision.Channels
	}

	if cfg.Run.Concurrency == 0 {
		cfg.Run.Concurrency = def.Run.Concurrency
	}
	if cfg.Run.UnitTimeout.Duration == 0 {
		cfg.Run.UnitTimeout = def.Run.UnitTimeout
	}
	if cfg.Run.StartupTimeout.Duration == 0 {
		cfg.Run.StartupTimeout = def.Run.StartupTimeout
	}
	if cfg.Run.LogLevel == "" {
		cfg.Run.LogLevel = def.Run.LogLevel
	}
	if cfg.Run.Env == nil {
		cfg.Run.Env = map[string]string{}
	}

	if cfg.Artifacts.Dir == "" {
		cfg.Artifacts.Dir = def.Artifacts.Dir
	}
}
