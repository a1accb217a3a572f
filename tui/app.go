// ABOUTME: Top-level Bubble Tea AppModel for the alt-screen dashboard composing all TUI sub-panels.
// ABOUTME: Routes snapshots to the agents, detail, log, kernel and status bar panels and handles focus keys.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/mop/project"
	"github.com/2389-research/mop/session"
)

// FocusTarget indicates which panel currently has keyboard focus.
type FocusTarget int

const (
	FocusAgents FocusTarget = iota
	FocusDetail
	FocusLog
)

// AppModel is the dashboard model.
type AppModel struct {
	controller

	agents    AgentsPanelModel
	detail    DetailPanelModel
	log       LogPanelModel
	statusBar StatusBarModel

	focus     FocusTarget
	width     int
	height    int
	leftWidth int
}

// NewAppModel creates a dashboard for one run.
func NewAppModel(ctx context.Context, opts Options) AppModel {
	m := AppModel{
		controller: newController(ctx, opts),
		detail:     NewDetailPanelModel(),
		log:        NewLogPanelModel(),
		statusBar:  NewStatusBarModel(),
		focus:      FocusAgents,
	}
	m.agents = NewAgentsPanelModel(m.opts.Catalog)
	m.agents.SetFocused(true)
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m AppModel) Init() tea.Cmd {
	return m.controller.init()
}

// Update implements tea.Model.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case TickMsg:
		m.agents.AdvanceSpinner()
	}

	cmd, handled := m.handle(msg)
	if handled {
		m.refresh()
	}
	return m, cmd
}

// refresh pushes the controller's view of the run into the panels.
func (m *AppModel) refresh() {
	m.agents.SetCards(m.cards, m.final != nil)
	m.log.SetEntries(m.snap.Log)

	pr := project.Summarize(m.cards)
	m.statusBar.SetRun(m.snap.RunID, m.snap.Elapsed(m.now()))
	m.statusBar.SetProgress(pr.Finished(), pr.Total)
	m.statusBar.SetKernel(Status(m.snap))
	thinking := ""
	for _, c := range m.cards {
		if c.Status == project.StatusThinking {
			thinking = m.opts.Catalog.Agent(c.Agent).Title()
			break
		}
	}
	m.statusBar.SetActiveAgent(thinking)
	m.syncDetail()
	m.layout()
}

// layout sizes the panels for the current window.
func (m *AppModel) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	statusBarHeight := 1
	agentsHeight := m.agents.rows() + 3
	bottomHeight := max(m.height-statusBarHeight-agentsHeight, 5)

	m.leftWidth = m.width * 55 / 100
	rightWidth := max(m.width-m.leftWidth, 10)

	m.agents.SetWidth(m.width)
	m.detail.SetSize(m.leftWidth, bottomHeight)
	m.log.SetSize(rightWidth, bottomHeight)
	m.statusBar.SetWidth(m.width)
}

func (m *AppModel) syncDetail() {
	if m.agents.FinalSelected() && m.final != nil {
		m.detail.SetFinal(*m.final, m.opts.Catalog.Agent(m.opts.Catalog.FinalAgent()))
		return
	}
	if c, ok := m.agents.Selected(); ok {
		m.detail.SetCard(c, m.opts.Catalog.Agent(c.Agent))
		return
	}
	m.detail.Clear()
}

// View implements tea.Model. Renders the full dashboard layout.
func (m AppModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	// Minimum terminal size guard to prevent layout overflow
	if m.width < 40 || m.height < 12 {
		return fmt.Sprintf("Terminal too small (%dx%d). Minimum: 40x12.", m.width, m.height)
	}

	var left string
	if m.kernel.HistoryOpen() || m.snap.Stopping || m.snap.KernelStopped {
		left = m.kernel.View(m.snap, m.leftWidth)
	} else {
		left = m.detail.View()
	}
	bottom := lipgloss.JoinHorizontal(lipgloss.Top, left, m.log.View())

	status := m.statusBar.View()
	if m.done {
		if m.err != nil || m.snap.Outcome == session.OutcomeFailed {
			status += " " + ErrorStyle.Render(fmt.Sprintf("FAILED: %s", m.snap.Err))
		} else {
			status += " " + CompleteStyle.Render(strings.ToUpper(string(m.snap.Outcome)))
		}
	}

	var b strings.Builder
	b.WriteString(m.agents.View())
	b.WriteString("\n")
	b.WriteString(bottom)
	b.WriteString("\n")
	b.WriteString(status)
	return b.String()
}

// handleKeyMsg processes focus and scroll keys, then the shared kernel keys.
func (m AppModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab":
		m.focus = m.nextFocus()
		m.agents.SetFocused(m.focus == FocusAgents)
		m.detail.SetFocused(m.focus == FocusDetail)
		m.log.SetFocused(m.focus == FocusLog)
		return m, nil

	case "up", "k":
		switch m.focus {
		case FocusAgents:
			m.agents.MoveUp()
			m.syncDetail()
		case FocusDetail:
			m.detail.ScrollUp()
		case FocusLog:
			m.log.ScrollUp()
		}
		return m, nil

	case "down", "j":
		switch m.focus {
		case FocusAgents:
			m.agents.MoveDown()
			m.syncDetail()
		case FocusDetail:
			m.detail.ScrollDown()
		case FocusLog:
			m.log.ScrollDown()
		}
		return m, nil
	}

	cmd, _ := m.handleKey(msg)
	return m, cmd
}

// nextFocus cycles the focus target.
func (m AppModel) nextFocus() FocusTarget {
	switch m.focus {
	case FocusAgents:
		return FocusDetail
	case FocusDetail:
		return FocusLog
	default:
		return FocusAgents
	}
}
