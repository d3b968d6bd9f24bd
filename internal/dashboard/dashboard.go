// Package dashboard is a minimal bubbletea terminal UI over the control
// surface: it renders the same data /status exposes and forwards a handful
// of keystrokes to the operator command set. Presentation is explicitly out
// of the core, so this stays small and reads, never mutates, health/
// selection state except via Surface's own methods.
package dashboard

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/beaconsage/claude-zephyr/internal/adapter/control"
	"github.com/beaconsage/claude-zephyr/internal/core/domain"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	healthyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	degradedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	unknownStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	currentStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type tickMsg time.Time

type model struct {
	surface *control.Surface
	status  control.StatusView
	spin    spinner.Model
}

// Run starts the dashboard's bubbletea program and blocks until the user
// quits or the program errors. It never calls os.Exit itself - the caller
// decides what quitting means for the rest of the process.
func Run(surface *control.Surface) error {
	s := spinner.New()
	s.Spinner = spinner.Line
	s.Style = footerStyle

	m := model{surface: surface, status: surface.Status(), spin: s}
	p := tea.NewProgram(m)
	_, err := p.Run()
	return err
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tick(), m.spin.Tick)
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.status = m.surface.Status()
		return m, tick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.surface.Shutdown()
			return m, tea.Quit
		case "r":
			m.surface.RefreshNow()
		case "a":
			m.surface.SetMode(domain.ModeAutomatic)
		case "p":
			m.surface.PauseProbes()
		case "u":
			m.surface.ResumeProbes()
		}
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Claude Zephyr"))
	if !m.status.ProbesPaused {
		b.WriteString(" " + m.spin.View())
	}
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("mode: %s   current: %s   connections: %d   interval: %.0fs\n\n",
		m.status.Mode, m.status.CurrentEndpoint, m.status.ActiveConnections, m.status.EffectiveIntervalSeconds))

	endpoints := make([]control.EndpointStatusView, len(m.status.Endpoints))
	copy(endpoints, m.status.Endpoints)
	sort.Slice(endpoints, func(i, j int) bool { return endpoints[i].Name < endpoints[j].Name })

	for _, ep := range endpoints {
		line := fmt.Sprintf("  %-20s %-10s failures=%-3d", ep.Name, ep.Status, ep.ConsecutiveFailures)
		if ep.LastLatencyMs != nil {
			line += fmt.Sprintf(" latency=%dms", *ep.LastLatencyMs)
		}
		if ep.ID == m.status.CurrentEndpoint {
			line = currentStyle.Render("* ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(styleForStatus(ep.Status).Render(line))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(footerStyle.Render("r refresh now · a automatic · p pause probes · u resume · q quit"))

	return b.String()
}

func styleForStatus(status string) lipgloss.Style {
	switch domain.EndpointStatus(status) {
	case domain.StatusHealthy:
		return healthyStyle
	case domain.StatusDegraded:
		return degradedStyle
	case domain.StatusFailed:
		return failedStyle
	default:
		return unknownStyle
	}
}
