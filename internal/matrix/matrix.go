// Package matrix loads the declarative topology/test matrix and expands
// it into the explicit list of execution units a run will dispatch.
//
// The matrix file is YAML, in the spirit of CI matrix definitions:
//
//	topologies:
//	  - name: single
//	    kind: single
//	    tests:
//	      - streams
//	      - projections
//	      - name: flaky_reconnect
//	        tolerated: true
//	  - name: cluster
//	    kind: cluster
//	    nodes: 3
//	    tests: [streams, projections, persistent_subscriptions]
//	include:
//	  - topology: single
//	    test: connection_churn
//	    tolerated: true
//
// Expansion happens entirely before any execution begins: every topology
// reference is validated against the closed kind enumeration and every
// include entry against the declared topologies, so configuration mistakes
// fail the run at planning time rather than mid-flight.
package matrix

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// maxMatrixFileSize is the maximum number of bytes read from a matrix file.
// Matrix files are always small; this guards against accidental huge reads.
const maxMatrixFileSize = 256 * 1024 // 256 KiB

// Document is the top-level structure of a matrix file.
type Document struct {
	// Topologies declares the deployment shapes of the run and the tests
	// assigned to each.
	Topologies []Topology `yaml:"topologies"`

	// Include lists extra (topology, test) cells appended to the expanded
	// matrix, referencing topologies by name.
	Include []IncludeEntry `yaml:"include"`
}

// Topology is one deployment shape declared in the matrix file. The Kind
// string is resolved against the closed topology kind set at planning time.
type Topology struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`

	// Nodes is the cluster member count; meaningful only for cluster
	// topologies. Zero means the default (3).
	Nodes int `yaml:"nodes"`

	// Capture controls failure-artifact collection for units under this
	// topology. Nil means enabled.
	Capture *bool `yaml:"capture"`

	// CertCommand overrides the certificate-generation command for secure
	// topologies (argv form). Empty means the server image's bundled
	// cert-gen tool.
	CertCommand []string `yaml:"cert_command"`

	// Tests are the test cases assigned to this topology.
	Tests []TestCase `yaml:"tests"`
}

// CaptureEnabled reports whether failure artifacts are collected for this
// topology. Defaults to true when the field is omitted.
func (t Topology) CaptureEnabled() bool {
	return t.Capture == nil || *t.Capture
}

// TestCase is one test identifier, optionally flagged as tolerated.
// In YAML it may be written as a bare scalar ("streams") or as a mapping
// with name and tolerated keys.
type TestCase struct {
	Name      string `yaml:"name"`
	Tolerated bool   `yaml:"tolerated"`
}

// UnmarshalYAML accepts both the scalar and the mapping form.
func (tc *TestCase) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		tc.Name = value.Value
		tc.Tolerated = false
		return nil
	}

	// Decode the mapping form through an alias type to avoid recursion.
	type rawTestCase TestCase
	var raw rawTestCase
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*tc = TestCase(raw)
	return nil
}

// IncludeEntry appends one explicit matrix cell.
type IncludeEntry struct {
	Topology  string `yaml:"topology"`
	Test      string `yaml:"test"`
	Tolerated bool   `yaml:"tolerated"`
}

// Load reads and parses a matrix file.
func Load(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("loading matrix file %q: %w", path, err)
	}
	if info.Size() > maxMatrixFileSize {
		return nil, fmt.Errorf("loading matrix file %q: file exceeds 256 KiB limit", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading matrix file %q: %w", path, err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing matrix file %q: %w", path, err)
	}
	return &doc, nil
}
