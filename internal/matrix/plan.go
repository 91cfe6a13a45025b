package matrix

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/gauntlet-ci/gauntlet/internal/topology"
)

// DefaultClusterNodes is the member count for cluster topologies that omit
// the nodes field.
const DefaultClusterNodes = 3

// Unit is one fully-resolved matrix cell: a test identifier bound to the
// topology it runs under. Units are the scheduler's unit of dispatch.
type Unit struct {
	// Topology is the declared topology name the unit runs under.
	Topology string

	// Kind is the resolved deployment shape of that topology.
	Kind topology.Kind

	// Test is the test identifier handed to the external test command.
	Test string

	// Tolerated marks a unit whose failure is recorded but never fails
	// the run.
	Tolerated bool
}

// ID returns the unit's stable identifier, `{topology}_{test}`. It names
// log directories, artifact keys, and event payloads.
func (u Unit) ID() string {
	return u.Topology + "_" + u.Test
}

// TopologyPlan is one topology with its resolved parameters and the units
// assigned to it.
type TopologyPlan struct {
	Name        string
	Kind        topology.Kind
	Nodes       int
	Capture     bool
	CertCommand []string
	Units       []Unit
}

// Plan is the fully-expanded, validated matrix: every unit the run will
// dispatch, grouped by topology. Building a Plan performs no I/O beyond
// generating the run identifier.
type Plan struct {
	// RunID uniquely identifies this run; it namespaces log directories
	// and artifact storage keys.
	RunID string

	// Topologies lists each declared topology with its assigned units, in
	// declaration order.
	Topologies []TopologyPlan
}

// Units returns all units across all topologies, in dispatch order.
func (p *Plan) Units() []Unit {
	var out []Unit
	for _, tp := range p.Topologies {
		out = append(out, tp.Units...)
	}
	return out
}

// InvalidEntryError reports a matrix entry that failed validation during
// plan expansion. The whole run is rejected before any execution begins.
type InvalidEntryError struct {
	// Entry locates the offending declaration, e.g. `topology "single"` or
	// `include[2]`.
	Entry  string
	Reason string
}

func (e *InvalidEntryError) Error() string {
	return fmt.Sprintf("invalid matrix entry %s: %s", e.Entry, e.Reason)
}

// BuildPlan validates the document and expands it into the explicit unit
// list. It rejects, with *InvalidEntryError:
//
//   - topologies with an empty name, duplicate name, or unknown kind
//   - cluster topologies declaring fewer than three nodes
//   - nodes set on non-cluster topologies
//   - test entries with empty names, or duplicated within a topology
//   - include entries referencing undeclared topologies or empty tests
//
// An include entry duplicating an existing (topology, test) cell overrides
// its tolerated flag rather than adding a second unit.
func BuildPlan(doc *Document) (*Plan, error) {
	if len(doc.Topologies) == 0 {
		return nil, &InvalidEntryError{Entry: "topologies", Reason: "no topologies declared"}
	}

	plan := &Plan{RunID: uuid.NewString()}

	byName := make(map[string]int, len(doc.Topologies))
	for _, t := range doc.Topologies {
		entry := fmt.Sprintf("topology %q", t.Name)
		if strings.TrimSpace(t.Name) == "" {
			return nil, &InvalidEntryError{Entry: "topology", Reason: "name must not be empty"}
		}
		if _, dup := byName[t.Name]; dup {
			return nil, &InvalidEntryError{Entry: entry, Reason: "duplicate topology name"}
		}

		kind, err := topology.ParseKind(t.Kind)
		if err != nil {
			return nil, &InvalidEntryError{Entry: entry, Reason: err.Error()}
		}

		if len(t.CertCommand) > 0 && kind != topology.KindSecure {
			return nil, &InvalidEntryError{Entry: entry, Reason: "cert_command is only valid for secure topologies"}
		}

		nodes := t.Nodes
		switch kind {
		case topology.KindCluster:
			if nodes == 0 {
				nodes = DefaultClusterNodes
			}
			if nodes < 3 {
				return nil, &InvalidEntryError{Entry: entry, Reason: fmt.Sprintf("cluster requires at least 3 nodes, got %d", nodes)}
			}
		default:
			if nodes > 1 {
				return nil, &InvalidEntryError{Entry: entry, Reason: fmt.Sprintf("nodes is only valid for cluster topologies, got %d", nodes)}
			}
			nodes = 1
		}

		tp := TopologyPlan{
			Name:        t.Name,
			Kind:        kind,
			Nodes:       nodes,
			Capture:     t.CaptureEnabled(),
			CertCommand: t.CertCommand,
		}

		seen := make(map[string]bool, len(t.Tests))
		for _, tc := range t.Tests {
			if strings.TrimSpace(tc.Name) == "" {
				return nil, &InvalidEntryError{Entry: entry, Reason: "test name must not be empty"}
			}
			if seen[tc.Name] {
				return nil, &InvalidEntryError{Entry: entry, Reason: fmt.Sprintf("duplicate test %q", tc.Name)}
			}
			seen[tc.Name] = true
			tp.Units = append(tp.Units, Unit{
				Topology:  t.Name,
				Kind:      kind,
				Test:      tc.Name,
				Tolerated: tc.Tolerated,
			})
		}

		byName[t.Name] = len(plan.Topologies)
		plan.Topologies = append(plan.Topologies, tp)
	}

	for i, inc := range doc.Include {
		entry := fmt.Sprintf("include[%d]", i)
		idx, ok := byName[inc.Topology]
		if !ok {
			known := topologyNames(doc.Topologies)
			return nil, &InvalidEntryError{
				Entry:  entry,
				Reason: fmt.Sprintf("unknown topology %q (declared: %s)", inc.Topology, strings.Join(known, ", ")),
			}
		}
		if strings.TrimSpace(inc.Test) == "" {
			return nil, &InvalidEntryError{Entry: entry, Reason: "test must not be empty"}
		}

		tp := &plan.Topologies[idx]
		if j := indexOfUnit(tp.Units, inc.Test); j >= 0 {
			// Duplicate cell: the include's tolerance wins.
			tp.Units[j].Tolerated = inc.Tolerated
			continue
		}
		tp.Units = append(tp.Units, Unit{
			Topology:  inc.Topology,
			Kind:      tp.Kind,
			Test:      inc.Test,
			Tolerated: inc.Tolerated,
		})
	}

	total := 0
	for _, tp := range plan.Topologies {
		total += len(tp.Units)
	}
	if total == 0 {
		return nil, &InvalidEntryError{Entry: "topologies", Reason: "matrix expands to zero units"}
	}

	return plan, nil
}

func indexOfUnit(units []Unit, test string) int {
	for i, u := range units {
		if u.Test == test {
			return i
		}
	}
	return -1
}

func topologyNames(topologies []Topology) []string {
	names := make([]string, 0, len(topologies))
	for _, t := range topologies {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}
