package topology

import "fmt"

// Kind is the closed set of deployment shapes Gauntlet can stand up.
// The set is deliberately a tagged enumeration rather than free-form
// strings: matrix planning validates every reference against it before any
// execution begins.
type Kind int

const (
	// KindSingle is one server instance with minimal configuration.
	KindSingle Kind = iota

	// KindSecure is one server instance with TLS enabled; startup includes
	// a certificate-generation step that must complete before readiness.
	KindSecure

	// KindCluster is N coordinated instances (N >= 3) acting as one
	// logical deployment; readiness requires every member reachable.
	KindCluster
)

// kindNames maps Kind values to their canonical string form.
var kindNames = map[Kind]string{
	KindSingle:  "single",
	KindSecure:  "secure",
	KindCluster: "cluster",
}

// String returns the canonical name of the kind ("single", "secure",
// "cluster").
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind converts a string to a Kind. Returns an error for any value
// outside the closed set.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown topology kind %q (must be one of: single, secure, cluster)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	name, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("invalid topology kind %d", int(k))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so Kind can be decoded
// directly from YAML and TOML.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
