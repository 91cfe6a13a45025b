package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// ValidationSeverity indicates whether a validation issue is an error or warning.
type ValidationSeverity string

const (
	// SeverityError indicates a fatal validation issue; the configuration is unusable.
	SeverityError ValidationSeverity = "error"
	// SeverityWarning indicates an informational validation issue; the
	// configuration works but may have problems.
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue represents a single validation finding.
type ValidationIssue struct {
	Severity ValidationSeverity
	Field    string // dotted path, e.g., "docker.repository"
	Message  string
}

// ValidationResult holds all validation findings.
type ValidationResult struct {
	Issues []ValidationIssue
}

// HasErrors returns true if any issue has error severity.
func (vr *ValidationResult) HasErrors() bool {
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// HasWarnings returns true if any issue has warning severity.
func (vr *ValidationResult) HasWarnings() bool {
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityWarning {
			return true
		}
	}
	return false
}

// Errors returns only error-severity issues.
func (vr *ValidationResult) Errors() []ValidationIssue {
	var errs []ValidationIssue
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityError {
			errs = append(errs, issue)
		}
	}
	return errs
}

// Warnings returns only warning-severity issues.
func (vr *ValidationResult) Warnings() []ValidationIssue {
	var warns []ValidationIssue
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityWarning {
			warns = append(warns, issue)
		}
	}
	return warns
}

// Validate checks the configuration for correctness and completeness.
// It performs structural validation, semantic validation, and unknown-key
// detection.
//
// Parameters:
//   - cfg: the configuration to validate
//   - meta: TOML metadata from BurntSushi/toml (may be nil if no file was loaded)
//
// Returns validation results. Check HasErrors() to determine if the config
// is usable.
func Validate(cfg *Config, meta *toml.MetaData) *ValidationResult {
	vr := &ValidationResult{}

	if cfg == nil {
		addError(vr, "", "configuration is nil")
		return vr
	}

	validateProject(vr, &cfg.Project)
	validateDocker(vr, &cfg.Docker)
	validateProvision(vr, &cfg.Provision)
	validateRun(vr, &cfg.Run)
	validateArtifacts(vr, &cfg.Artifacts)
	validateUnknownKeys(vr, meta)

	return vr
}

// validateProject checks the [project] section.
func validateProject(vr *ValidationResult, p *ProjectConfig) {
	if p.Name == "" {
		addError(vr, "project.name", "must not be empty")
	}
	if p.MatrixFile == "" {
		addError(vr, "project.matrix_file", "must not be empty")
	} else if _, err := os.Stat(p.MatrixFile); err != nil {
		addWarning(vr, "project.matrix_file",
			fmt.Sprintf("file %q does not exist", p.MatrixFile))
	}
}

// validateDocker checks the [docker] section.
func validateDocker(vr *ValidationResult, d *DockerConfig) {
	if d.Repository == "" {
		addError(vr, "docker.repository", "must not be empty")
	}
	if d.Image == "" {
		addError(vr, "docker.image", "must not be empty")
	}
	if strings.ContainsAny(d.ContainerPrefix, " /:") {
		addError(vr, "docker.container_prefix",
			fmt.Sprintf("%q contains characters not allowed in container names", d.ContainerPrefix))
	}
}

// validateProvision checks the [provision] section.
func validateProvision(vr *ValidationResult, p *ProvisionConfig) {
	if len(p.Channels) == 0 {
		addError(vr, "provision.channels", "at least one channel must be defined")
		return
	}

	for name, tag := range p.Channels {
		if tag == "" {
			addError(vr, "provision.channels."+name, "tag must not be empty")
		}
	}

	if p.DefaultChannel != "" {
		if _, ok := p.Channels[p.DefaultChannel]; !ok {
			addError(vr, "provision.default_channel",
				fmt.Sprintf("%q is not a defined channel", p.DefaultChannel))
		}
	}

	for i, arg := range p.BuildCommand {
		if arg == "" {
			addError(vr, fmt.Sprintf("provision.build_command[%d]", i),
				"must not be an empty string")
		}
	}
}

// validateRun checks the [run] section.
func validateRun(vr *ValidationResult, r *RunConfig) {
	if len(r.TestCommand) == 0 {
		addError(vr, "run.test_command", "must not be empty")
	}
	for i, arg := range r.TestCommand {
		if arg == "" {
			addError(vr, fmt.Sprintf("run.test_command[%d]", i),
				"must not be an empty string")
		}
	}

	if r.Concurrency < 1 {
		addError(vr, "run.concurrency",
			fmt.Sprintf("must be >= 1, got %d", r.Concurrency))
	}
	if r.UnitTimeout.Duration <= 0 {
		addError(vr, "run.unit_timeout", "must be a positive duration")
	}
	if r.StartupTimeout.Duration <= 0 {
		addError(vr, "run.startup_timeout", "must be a positive duration")
	}
}

// validateArtifacts checks the [artifacts] section.
func validateArtifacts(vr *ValidationResult, a *ArtifactsConfig) {
	if a.Dir == "" {
		addError(vr, "artifacts.dir", "must not be empty")
	}

	// The S3 sink is optional, but a partially specified one is a mistake.
	if a.S3.Endpoint != "" && a.S3.Bucket == "" {
		addError(vr, "artifacts.s3.bucket",
			"must not be empty when artifacts.s3.endpoint is set")
	}
	if a.S3.Endpoint == "" && a.S3.Bucket != "" {
		addWarning(vr, "artifacts.s3.endpoint",
			"bucket is set but endpoint is empty; S3 sink is disabled")
	}
}

// validateUnknownKeys checks for TOML keys that did not map to any config
// struct field.
func validateUnknownKeys(vr *ValidationResult, meta *toml.MetaData) {
	if meta == nil {
		return
	}

	for _, key := range meta.Undecoded() {
		path := strings.Join(key, ".")
		addWarning(vr, path, "unknown configuration key")
	}
}

// addError appends an error-severity issue to the validation result.
func addError(vr *ValidationResult, field, message string) {
	vr.Issues = append(vr.Issues, ValidationIssue{
		Severity: SeverityError,
		Field:    field,
		Message:  message,
	})
}

// addWarning appends a warning-severity issue to the validation result.
func addWarning(vr *ValidationResult, field, message string) {
	vr.Issues = append(vr.Issues, ValidationIssue{
		Severity: SeverityWarning,
		Field:    field,
		Message:  message,
	})
}
