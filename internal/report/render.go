package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/gauntlet-ci/gauntlet/internal/scheduler"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	passedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	toleratedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Render produces the end-of-run summary printed to stdout.
func Render(s Summary) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("Run %s", s.RunID)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("image %s, %d units, %s", s.Image, s.Total, s.Duration.Round(10*time.Millisecond))))
	b.WriteString("\n\n")

	currentTopology := ""
	for _, o := range s.Outcomes {
		if o.Unit.Topology != currentTopology {
			currentTopology = o.Unit.Topology
			b.WriteString(headerStyle.Render(currentTopology))
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("  %-40s %s%s\n", o.Unit.Test, renderStatus(o), renderDetail(o)))
	}

	b.WriteString("\n")
	verdict := passedStyle.Render("PASSED")
	if s.Failed() {
		verdict = failedStyle.Render("FAILED")
	}
	b.WriteString(fmt.Sprintf("%s  %d passed, %d failed, %d tolerated\n",
		verdict, s.Passed, s.FailedHard, s.FailedTolerated))
	return b.String()
}

func renderStatus(o scheduler.UnitOutcome) string {
	switch o.Status {
	case scheduler.StatusPassed:
		return passedStyle.Render("passed")
	case scheduler.StatusFailedTolerated:
		return toleratedStyle.Render("failed (tolerated)")
	default:
		return failedStyle.Render("failed")
	}
}

func renderDetail(o scheduler.UnitOutcome) string {
	var parts []string
	if o.Reason != scheduler.ReasonNone {
		parts = append(parts, o.Reason.String())
	}
	if o.Duration > 0 {
		parts = append(parts, o.Duration.Round(10*time.Millisecond).String())
	}
	if o.BundlePath != "" {
		parts = append(parts, "bundle: "+o.BundlePath)
	}
	if len(parts) == 0 {
		return ""
	}
	return dimStyle.Render("  (" + strings.Join(parts, ", ") + ")")
}
