// ABOUTME: Bubble Tea sub-model listing every agent card with status markers, spinner and a selection cursor.
// ABOUTME: The final insights agent is listed last when its response is available.
package tui

import (
	"fmt"
	"strings"

	"github.com/2389-research/mop/config"
	"github.com/2389-research/mop/project"
)

// AgentsPanelModel displays the projected cards.
type AgentsPanelModel struct {
	cards    []project.Card
	catalog  config.Config
	hasFinal bool
	selected int
	spinner  int
	focused  bool
	width    int
}

// NewAgentsPanelModel creates a panel for the given catalog.
func NewAgentsPanelModel(catalog config.Config) AgentsPanelModel {
	return AgentsPanelModel{catalog: catalog}
}

// SetCards replaces the displayed cards. hasFinal adds the final insights row.
func (m *AgentsPanelModel) SetCards(cards []project.Card, hasFinal bool) {
	m.cards = cards
	m.hasFinal = hasFinal
	if m.selected >= m.rows() {
		m.selected = max(m.rows()-1, 0)
	}
}

func (m AgentsPanelModel) rows() int {
	n := len(m.cards)
	if m.hasFinal {
		n++
	}
	return n
}

// MoveUp moves the cursor up one row.
func (m *AgentsPanelModel) MoveUp() {
	if m.selected > 0 {
		m.selected--
	}
}

// MoveDown moves the cursor down one row.
func (m *AgentsPanelModel) MoveDown() {
	if m.selected < m.rows()-1 {
		m.selected++
	}
}

// Selected returns the selected card, or ok=false when the final insights
// row (or nothing) is selected.
func (m AgentsPanelModel) Selected() (project.Card, bool) {
	if m.selected < len(m.cards) {
		return m.cards[m.selected], true
	}
	return project.Card{}, false
}

// FinalSelected reports whether the final insights row is selected.
func (m AgentsPanelModel) FinalSelected() bool {
	return m.hasFinal && m.selected == len(m.cards)
}

// AdvanceSpinner increments the spinner frame index.
func (m *AgentsPanelModel) AdvanceSpinner() {
	m.spinner++
}

// SetFocused sets whether this panel accepts the cursor keys.
func (m *AgentsPanelModel) SetFocused(focused bool) {
	m.focused = focused
}

// SetWidth sets the available width for rendering.
func (m *AgentsPanelModel) SetWidth(w int) {
	m.width = w
}

// View renders the agents panel.
func (m AgentsPanelModel) View() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("=== AGENTS ==="))

	for i, c := range m.cards {
		a := m.catalog.Agent(c.Agent)
		cursor := "  "
		if i == m.selected {
			cursor = "> "
		}
		marker := Icon(c.Status)
		if c.Status == project.StatusThinking {
			marker += " " + SpinnerFrames[m.spinner%len(SpinnerFrames)]
		}
		line := fmt.Sprintf("%s%s %s", cursor, marker, agentLabel(a))
		if caption := cardCaption(c); caption != "" {
			line += "  " + caption
		}
		b.WriteString("\n")
		b.WriteString(StyleForStatus(c.Status).Render(line))
	}

	if m.hasFinal {
		cursor := "  "
		if m.FinalSelected() {
			cursor = "> "
		}
		b.WriteString("\n")
		b.WriteString(FinalStyle.Render(cursor + "[*] " + agentLabel(m.catalog.Agent(m.catalog.FinalAgent()))))
	}

	style := BorderStyle
	if m.focused {
		style = FocusedBorderStyle
	}
	if m.width > 0 {
		style = style.Width(m.width - 2)
	}
	return style.Render(b.String())
}
