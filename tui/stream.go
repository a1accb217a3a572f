// ABOUTME: StreamModel is an inline Bubble Tea model that renders live agent cards without the alt screen.
// ABOUTME: Shows status markers, spinners, queued agents, rendered responses, final insights and the kernel state.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/truncate"

	"github.com/2389-research/mop/project"
)

// StreamModel is an inline (non-alt-screen) Bubble Tea model that displays
// the projected cards of the current run as a streaming list.
type StreamModel struct {
	controller
	width int
}

// NewStreamModel creates a StreamModel for inline run display. The run
// starts when the program calls Init.
func NewStreamModel(ctx context.Context, opts Options) StreamModel {
	return StreamModel{controller: newController(ctx, opts)}
}

// Init implements tea.Model.
func (m StreamModel) Init() tea.Cmd {
	return m.controller.init()
}

// Update implements tea.Model.
func (m StreamModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		cmd, _ := m.handleKey(msg)
		return m, cmd

	case RunResultMsg:
		m.handle(msg)
		// A hard-stopped run stays on screen so it can be reset and continued.
		if m.snap.KernelStopped {
			return m, nil
		}
		return m, m.quit()
	}

	cmd, _ := m.handle(msg)
	return m, cmd
}

// View implements tea.Model.
func (m StreamModel) View() string {
	var b strings.Builder

	header := "🔬 mop"
	if m.opts.Problem != "" {
		header += " · " + strings.Join(strings.Fields(m.opts.Problem), " ")
	}
	if m.width > 0 {
		header = truncate.StringWithTail(header, uint(m.width), "…")
	}
	b.WriteString(TitleStyle.Render(header))
	b.WriteString("\n\n")

	for _, c := range m.cards {
		b.WriteString(m.renderCard(c))
		b.WriteString("\n")
	}

	if m.final != nil {
		a := m.opts.Catalog.Agent(m.opts.Catalog.FinalAgent())
		b.WriteString("\n")
		b.WriteString(FinalStyle.Render("  " + agentLabel(a)))
		b.WriteString("\n")
		b.WriteString(RenderDocument(*m.final, m.width, 6))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.progressLine())
	b.WriteString("\n")
	b.WriteString("  " + m.kernel.StatusLine(m.snap))
	b.WriteString("\n")
	if m.kernel.HistoryOpen() {
		b.WriteString(m.kernel.HistoryView())
		b.WriteString("\n")
	}
	b.WriteString(HintStyle.Render("  " + Hints(m.snap, m.kernel.HistoryOpen())))
	b.WriteString("\n")
	return b.String()
}

// renderCard renders one card line and, for completed agents, the response.
func (m StreamModel) renderCard(c project.Card) string {
	a := m.opts.Catalog.Agent(c.Agent)
	style := StyleForStatus(c.Status)

	line := fmt.Sprintf("  %s %s", Glyph(c.Status, m.spinner), AgentStyle(a.Color).Render(agentLabel(a)))
	if caption := cardCaption(c); caption != "" {
		line += "  " + style.Render(caption)
	}

	if c.Status == project.StatusComplete && c.Document != nil {
		line += "\n" + RenderDocument(*c.Document, m.width, 6)
	}
	return line
}
