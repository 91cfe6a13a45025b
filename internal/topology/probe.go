package topology

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Prober checks whether a single endpoint is accepting connections.
// Controllers poll it for every endpoint until the topology is ready or the
// startup window expires.
type Prober interface {
	Probe(ctx context.Context, endpoint string) error
}

// TCPProber probes readiness by opening a TCP connection to the endpoint.
// A successful dial means the server's listener is up, which is the
// readiness contract for both plain and TLS deployments (the TLS handshake
// is the test client's concern, not the harness's).
type TCPProber struct {
	// DialTimeout bounds a single connection attempt. Zero means 2s.
	DialTimeout time.Duration
}

func (p *TCPProber) Probe(ctx context.Context, endpoint string) error {
	timeout := p.DialTimeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return fmt.Errorf("endpoint %s not reachable: %w", endpoint, err)
	}
	return conn.Close()
}
