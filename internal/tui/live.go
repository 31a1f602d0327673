// Package tui renders the agent's live dashboard: request and latency
// sparklines, per-replica hit counts, and run progress.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"swarmstress/internal/agent"
)

// DoneMsg ends the dashboard; the driver sends it when the run finishes.
type DoneMsg struct{}

type Model struct {
	target   string
	duration time.Duration
	updates  agent.SnapshotChan

	// Cancel aborts the run when the user quits early.
	Cancel func()

	snap     agent.Snapshot
	progress progress.Model
	rpsLine  sparkline
	latLine  sparkline

	start    time.Time
	lastAt   time.Time
	lastReqs uint64

	width int
	done  bool
}

func NewModel(target string, duration time.Duration, updates agent.SnapshotChan, cancel func()) Model {
	return Model{
		target:   target,
		duration: duration,
		updates:  updates,
		Cancel:   cancel,
		progress: progress.New(progress.WithDefaultGradient()),
		rpsLine:  newSparkline(40, "RPS", styleGood),
		latLine:  newSparkline(40, "Latency P90 (ms)", styleWarn),
		start:    time.Now(),
		lastAt:   time.Now(),
	}
}

func (m Model) Init() tea.Cmd {
	return m.waitForSnapshot()
}

func (m Model) waitForSnapshot() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return DoneMsg{}
		}
		return snap
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case agent.Snapshot:
		now := time.Now()
		dt := now.Sub(m.lastAt).Seconds()
		if dt < 0.01 {
			dt = 0.01
		}
		m.rpsLine.push(float64(msg.Requests-m.lastReqs) / dt)
		m.latLine.push(msg.P90Ms)

		m.snap = msg
		m.lastReqs = msg.Requests
		m.lastAt = now

		pct := float64(msg.Elapsed) / float64(m.duration)
		if pct > 1.0 {
			pct = 1.0
		}
		return m, tea.Batch(m.progress.SetPercent(pct), m.waitForSnapshot())

	case DoneMsg:
		m.done = true
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.Cancel != nil {
				m.Cancel()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = msg.Width - 4
		half := (msg.Width / 2) - 4
		if half < 10 {
			half = 10
		}
		m.rpsLine.width = half
		m.latLine.width = half

	case progress.FrameMsg:
		prog, cmd := m.progress.Update(msg)
		m.progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(styleTitle.Render("swarmstress "+m.target) + "\n\n")

	errRate := 0.0
	if m.snap.Requests > 0 {
		errRate = float64(m.snap.Fail) / float64(m.snap.Requests) * 100
	}
	errStyle := styleGood
	if errRate > 1.0 {
		errStyle = styleWarn
	}
	if errRate > 5.0 {
		errStyle = styleError
	}

	col1 := fmt.Sprintf("REQ: %d\nSESS: %d", m.snap.Requests, m.snap.Sessions)
	col2 := fmt.Sprintf("ACTIVE: %d\nERR: %s", m.snap.Active,
		errStyle.Render(fmt.Sprintf("%.2f%%", errRate)))
	col3 := fmt.Sprintf("P50: %.1f ms\nP99: %.1f ms", m.snap.P50Ms, m.snap.P99Ms)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styleBox.Render(col1),
		styleBox.Render(col2),
		styleBox.Render(col3),
	))
	s.WriteString("\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styleBox.Render(m.rpsLine.view()),
		styleBox.Render(m.latLine.view()),
	))
	s.WriteString("\n\n")

	s.WriteString(styleBox.Render(m.serverSplit()))
	s.WriteString("\n\n")

	s.WriteString(m.progress.View())
	s.WriteString("\n")
	s.WriteString(styleSubtle.Render("q to stop"))

	return s.String()
}

// serverSplit shows how the replicas behind the target are sharing the
// traffic, the live view of fairness.
func (m Model) serverSplit() string {
	if len(m.snap.ServerHits) == 0 {
		return "servers: waiting for responses"
	}

	ids := make([]string, 0, len(m.snap.ServerHits))
	for id := range m.snap.ServerHits {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		share := float64(m.snap.ServerHits[id]) / float64(m.snap.Requests) * 100
		parts = append(parts, fmt.Sprintf("%s: %.1f%%", id, share))
	}
	return "servers  " + strings.Join(parts, "  |  ")
}
