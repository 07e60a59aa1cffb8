// Package tui renders a live batch progress view: counters, a handshake
// latency trend and a progress bar, fed by the orchestrator's snapshot
// channel.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mqttlat/internal/batch"
	"mqttlat/internal/tui/styles"
)

// DoneMsg ends the program; the caller sends it when the batch finishes.
type DoneMsg struct{}

type Model struct {
	updates batch.UpdateChan

	snap     batch.Snapshot
	progress progress.Model
	hsLine   Sparkline

	totalTrials int
	width       int
	quitting    bool
}

func NewModel(updates batch.UpdateChan, totalTrials int) Model {
	return Model{
		updates:     updates,
		progress:    progress.New(progress.WithDefaultGradient()),
		hsLine:      NewSparkline(40, "Handshake p95 (ms)", styles.Warn),
		totalTrials: totalTrials,
	}
}

func (m Model) Init() tea.Cmd {
	return m.listen()
}

// listen waits for the next snapshot from the orchestrator.
func (m Model) listen() tea.Cmd {
	return func() tea.Msg {
		return <-m.updates
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case batch.Snapshot:
		m.snap = msg
		m.hsLine.Add(msg.P95HandshakeMs)

		pct := 0.0
		if m.totalTrials > 0 {
			pct = float64(msg.Trials) / float64(m.totalTrials)
			if pct > 1.0 {
				pct = 1.0
			}
		}
		return m, tea.Batch(m.progress.SetPercent(pct), m.listen())

	case DoneMsg:
		m.quitting = true
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = msg.Width - 4
		half := (msg.Width / 2) - 4
		if half < 10 {
			half = 10
		}
		m.hsLine.Width = half

	case progress.FrameMsg:
		prog, cmd := m.progress.Update(msg)
		m.progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	s := strings.Builder{}
	s.WriteString(styles.Title.Render("mqttlat live batch"))
	s.WriteString("\n\n")

	errRate := 0.0
	if m.snap.Trials > 0 {
		errRate = (float64(m.snap.Fail) / float64(m.snap.Trials)) * 100
	}
	errStyle := styles.Active
	if errRate > 5.0 {
		errStyle = styles.Error
	} else if errRate > 0 {
		errStyle = styles.Warn
	}

	col1 := fmt.Sprintf("CONFIG: %s\n%d of %d", m.snap.ConfigName, m.snap.ConfigIndex, m.snap.ConfigCount)
	col2 := fmt.Sprintf("TRIAL: %d/%d\nDONE: %d", m.snap.Iteration, m.snap.Iterations, m.snap.Trials)
	col3 := fmt.Sprintf("OK: %d\nERR: %s", m.snap.Success, errStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.snap.Fail, errRate)))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(col2),
		styles.Box.Render(col3),
	))
	s.WriteString("\n\n")

	s.WriteString(styles.Box.Render(m.hsLine.View()))
	s.WriteString("\n\n")

	latencies := fmt.Sprintf(
		"Handshake P50: %.2f ms  |  P95: %.2f ms  |  PubAck mean: %.2f ms",
		m.snap.P50HandshakeMs,
		m.snap.P95HandshakeMs,
		m.snap.MeanPubAckMs,
	)
	width := m.width - 4
	if width < 20 {
		width = 20
	}
	s.WriteString(styles.Box.Width(width).Render(latencies))
	s.WriteString("\n\n")

	s.WriteString(m.progress.View())
	s.WriteString("\n")
	s.WriteString(styles.Subtle.Render("q to abort"))

	return s.String()
}
