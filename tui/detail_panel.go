// ABOUTME: Bubble Tea sub-model showing the selected agent: status, stage, message and full rendered response.
// ABOUTME: The response scrolls in a bubbles viewport so long analyses stay readable.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"

	"github.com/2389-research/mop/config"
	"github.com/2389-research/mop/normalize"
	"github.com/2389-research/mop/project"
)

// DetailPanelModel displays the selected card or the final insights.
type DetailPanelModel struct {
	card     *project.Card
	final    *normalize.Document
	agent    config.Agent
	viewport viewport.Model
	body     string
	focused  bool
	width    int
	height   int
}

// NewDetailPanelModel creates an empty detail panel.
func NewDetailPanelModel() DetailPanelModel {
	return DetailPanelModel{viewport: viewport.New(40, 10)}
}

// SetCard shows c, described by agent.
func (m *DetailPanelModel) SetCard(c project.Card, agent config.Agent) {
	m.card = &c
	m.final = nil
	m.agent = agent
	m.sync()
}

// SetFinal shows the final insights document.
func (m *DetailPanelModel) SetFinal(doc normalize.Document, agent config.Agent) {
	m.card = nil
	m.final = &doc
	m.agent = agent
	m.sync()
}

// Clear removes the selection.
func (m *DetailPanelModel) Clear() {
	m.card = nil
	m.final = nil
	m.sync()
}

// SetFocused sets whether scroll keys go to this panel.
func (m *DetailPanelModel) SetFocused(focused bool) {
	m.focused = focused
}

// ScrollUp scrolls the response up one line.
func (m *DetailPanelModel) ScrollUp() {
	m.viewport.LineUp(1)
}

// ScrollDown scrolls the response down one line.
func (m *DetailPanelModel) ScrollDown() {
	m.viewport.LineDown(1)
}

// SetSize sets the available dimensions.
func (m *DetailPanelModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	// Border (2), title, four header rows and a gap.
	width := max(w-4, 1)
	m.viewport.Height = max(h-8, 1)
	if width != m.viewport.Width {
		m.viewport.Width = width
		m.body = ""
	}
	m.sync()
}

func (m *DetailPanelModel) sync() {
	var body string
	switch {
	case m.final != nil:
		body = RenderDocument(*m.final, m.viewport.Width, 0)
	case m.card != nil && m.card.Document != nil:
		body = RenderDocument(*m.card.Document, m.viewport.Width, 0)
	case m.card != nil && m.card.Status == project.StatusError && m.card.Response != "":
		body = m.card.Response
	}
	if body == m.body {
		return
	}
	m.body = body
	m.viewport.SetContent(body)
	m.viewport.GotoTop()
}

// View renders the detail panel.
func (m DetailPanelModel) View() string {
	title := TitleStyle.Render("AGENT DETAIL")

	var lines []string
	lines = append(lines, title)
	switch {
	case m.final != nil:
		lines = append(lines, row("Agent:", agentLabel(m.agent)))
		lines = append(lines, "", m.viewport.View())
	case m.card != nil:
		c := m.card
		lines = append(lines, row("Agent:", agentLabel(m.agent)))
		lines = append(lines, LabelStyle.Render("Status:")+StyleForStatus(c.Status).Render(string(c.Status)))
		lines = append(lines, row("Stage:", intOrDash(c.Stage)))
		lines = append(lines, row("Iteration:", intOrDash(c.Iteration)))
		if c.Message != "" {
			lines = append(lines, row("Message:", c.Message))
		} else if c.Status == project.StatusQueued {
			lines = append(lines, row("Message:", QueuedText))
		}
		if m.viewport.TotalLineCount() > 0 && strings.TrimSpace(m.viewport.View()) != "" {
			lines = append(lines, "", m.viewport.View())
		}
	default:
		lines = append(lines, "", ValueStyle.Render("No agent selected"))
	}

	style := BorderStyle
	if m.focused {
		style = FocusedBorderStyle
	}
	if m.width > 0 {
		style = style.Width(m.width - 2)
	}
	if m.height > 0 {
		style = style.Height(m.height - 2)
	}
	return style.Render(strings.Join(lines, "\n"))
}

// row renders a label-value pair using the standard label and value styles.
func row(label, value string) string {
	return LabelStyle.Render(label) + ValueStyle.Render(value)
}

func intOrDash(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}
