package topology

import (
	"fmt"
	"strings"
)

// Spec describes one topology to deploy: its declared name, shape, member
// count, and the host port block its containers bind to.
type Spec struct {
	// Name is the matrix-declared topology name.
	Name string

	// Kind is the deployment shape.
	Kind Kind

	// Nodes is the member count: 1 for single and secure, >= 3 for cluster.
	Nodes int

	// BasePort is the first host port of the topology's port block; node i
	// binds BasePort+i. Concurrent topologies get disjoint blocks.
	BasePort int

	// Capture controls whether failure artifacts are collected for units
	// under this topology.
	Capture bool
}

// ConnectionParams is everything a test process needs to reach a ready
// topology. It is exported to units through their environment.
type ConnectionParams struct {
	// Endpoints are host:port pairs, one per node.
	Endpoints []string

	// Secure is true when the deployment serves TLS.
	Secure bool

	// CertDir is the trusted-root directory for secure deployments, empty
	// otherwise.
	CertDir string
}

// ConnectionString renders the esdb:// form test clients consume, e.g.
// "esdb://127.0.0.1:2113?tls=false" or
// "esdb://127.0.0.1:3113,127.0.0.1:3114,127.0.0.1:3115?tls=true".
func (p ConnectionParams) ConnectionString() string {
	return fmt.Sprintf("esdb://%s?tls=%t", strings.Join(p.Endpoints, ","), p.Secure)
}
