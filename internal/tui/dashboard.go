// Package tui renders a live run dashboard for `gauntlet run --watch`. It
// consumes scheduler progress events and shows per-topology unit status
// while the run executes; the final summary is still printed by the CLI
// after the program exits, so CI logs and the interactive view agree.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gauntlet-ci/gauntlet/internal/report"
	"github.com/gauntlet-ci/gauntlet/internal/scheduler"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	topologyStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	passedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	toleratedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// eventMsg wraps a scheduler event for the bubbletea loop.
type eventMsg struct{ ev scheduler.Event }

// doneMsg carries the run result into the loop and ends the program.
type doneMsg struct {
	summary report.Summary
	err     error
}

type topologyRow struct {
	name   string
	status string // "starting", "ready", "failed", "stopped"
	units  map[string]string
	order  []string
}

// Model is the dashboard state. Exported for tests; use Run to drive it.
type Model struct {
	spinner    spinner.Model
	topologies []*topologyRow
	byName     map[string]*topologyRow
	finished   int
	done       bool
	summary    report.Summary
	err        error
}

// NewModel builds an empty dashboard model.
func NewModel() Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		spinner: sp,
		byName:  make(map[string]*topologyRow),
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	case eventMsg:
		m.apply(msg.ev)
		return m, nil
	case doneMsg:
		m.done = true
		m.summary = msg.summary
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) apply(ev scheduler.Event) {
	row := m.byName[ev.Topology]
	if row == nil && ev.Topology != "" {
		row = &topologyRow{name: ev.Topology, status: "starting", units: make(map[string]string)}
		m.byName[ev.Topology] = row
		m.topologies = append(m.topologies, row)
		sort.Slice(m.topologies, func(i, j int) bool { return m.topologies[i].name < m.topologies[j].name })
	}
	if row == nil {
		return
	}

	switch ev.Type {
	case scheduler.EventTopologyReady:
		row.status = "ready"
	case scheduler.EventTopologyFailed:
		row.status = "failed"
	case scheduler.EventTopologyStopped:
		row.status = "stopped"
	case scheduler.EventUnitStarted:
		row.addUnit(ev.Unit, "running")
	case scheduler.EventUnitFinished:
		row.addUnit(ev.Unit, ev.Status.String())
		m.finished++
	}
}

func (r *topologyRow) addUnit(unit, status string) {
	if _, seen := r.units[unit]; !seen {
		r.order = append(r.order, unit)
	}
	r.units[unit] = status
}

func (m Model) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("gauntlet"))
	b.WriteString(fmt.Sprintf(" %s %d units finished\n\n", m.spinner.View(), m.finished))

	for _, row := range m.topologies {
		b.WriteString(fmt.Sprintf("%s %s\n", topologyStyle.Render(row.name), pendingStyle.Render("["+row.status+"]")))
		for _, unit := range row.order {
			b.WriteString(fmt.Sprintf("  %-50s %s\n", unit, styleUnitStatus(row.units[unit])))
		}
	}
	b.WriteString(pendingStyle.Render("\npress q to detach\n"))
	return b.String()
}

func styleUnitStatus(status string) string {
	switch status {
	case "passed":
		return passedStyle.Render(status)
	case "failed":
		return failedStyle.Render(status)
	case "failed_tolerated":
		return toleratedStyle.Render(status)
	default:
		return pendingStyle.Render(status)
	}
}

// Run drives the dashboard while execute runs in the background. It
// forwards scheduler events into the program and returns the run's summary
// once execute completes. Quitting the dashboard detaches the view; the
// run itself keeps going and its result is still returned.
func Run(ctx context.Context, events <-chan scheduler.Event, execute func(ctx context.Context) (report.Summary, error)) (report.Summary, error) {
	p := tea.NewProgram(NewModel(), tea.WithContext(ctx))

	go func() {
		for ev := range events {
			p.Send(eventMsg{ev: ev})
		}
	}()

	result := make(chan doneMsg, 1)
	go func() {
		summary, err := execute(ctx)
		msg := doneMsg{summary: summary, err: err}
		result <- msg
		p.Send(msg)
	}()

	if _, err := p.Run(); err != nil {
		// The view failing (or being quit early) must not lose the run.
		res := <-result
		return res.summary, res.err
	}

	res := <-result
	return res.summary, res.err
}
