// ABOUTME: Implements a scrollable ingestion log panel using the bubbles viewport component.
// ABOUTME: Displays session log entries with color-coded formatting based on entry kind and status.
package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/mop/session"
)

// LogPanelModel is a scrollable view of the session's ingestion log.
type LogPanelModel struct {
	entries  []session.LogEntry
	lastID   string
	viewport viewport.Model
	focused  bool
	width    int
	height   int
}

// NewLogPanelModel creates an empty log panel.
func NewLogPanelModel() LogPanelModel {
	return LogPanelModel{viewport: viewport.New(80, 10)}
}

// SetEntries replaces the log. The view follows the tail only when new
// entries arrived.
func (m *LogPanelModel) SetEntries(entries []session.LogEntry) {
	last := ""
	if len(entries) > 0 {
		last = entries[len(entries)-1].ID
	}
	if last == m.lastID {
		return
	}
	m.entries = entries
	m.lastID = last
	m.syncViewport()
}

// Len returns the number of entries in the log.
func (m LogPanelModel) Len() int {
	return len(m.entries)
}

// SetFocused sets whether this panel accepts keyboard input.
func (m *LogPanelModel) SetFocused(focused bool) {
	m.focused = focused
}

// IsFocused returns whether the panel is focused.
func (m LogPanelModel) IsFocused() bool {
	return m.focused
}

// ScrollUp scrolls one line up.
func (m *LogPanelModel) ScrollUp() {
	m.viewport.LineUp(1)
}

// ScrollDown scrolls one line down.
func (m *LogPanelModel) ScrollDown() {
	m.viewport.LineDown(1)
}

// SetSize sets the available dimensions and updates the viewport.
func (m *LogPanelModel) SetSize(w, h int) {
	if w == m.width && h == m.height {
		return
	}
	m.width = w
	m.height = h
	// Reserve space for the border (2 lines top/bottom) and title (1 line)
	m.viewport.Width = max(w-2, 1)
	m.viewport.Height = max(h-3, 1)
	m.syncViewport()
}

// View renders the log panel.
func (m LogPanelModel) View() string {
	title := "INGESTION LOG"
	if m.focused {
		title = "INGESTION LOG (focused)"
	}

	content := "No events yet"
	if len(m.entries) > 0 {
		content = m.viewport.View()
	}

	style := BorderStyle
	if m.focused {
		style = FocusedBorderStyle
	}
	return style.
		Width(max(m.width-2, 1)).
		Height(max(m.height-2, 1)).
		Render(TitleStyle.Render(title) + "\n" + content)
}

// syncViewport rebuilds the viewport content from entries and scrolls to the bottom.
func (m *LogPanelModel) syncViewport() {
	if len(m.entries) == 0 {
		m.viewport.SetContent("")
		return
	}
	lines := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		lines = append(lines, formatEntry(e))
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.viewport.GotoBottom()
}

// formatEntry formats a single log entry as one line.
func formatEntry(e session.LogEntry) string {
	parts := []string{
		LogTimestampStyle.Render(e.Time.Format("15:04:05")),
		entryStyle(e).Render(e.Kind),
	}
	if e.Agent != "" {
		parts = append(parts, "["+e.Agent+"]")
	}
	if e.Status != "" {
		parts = append(parts, e.Status)
	}
	if e.Message != "" {
		parts = append(parts, strings.Join(strings.Fields(e.Message), " "))
	}
	return strings.Join(parts, " ")
}

// entryStyle returns the style for a log entry.
func entryStyle(e session.LogEntry) lipgloss.Style {
	switch {
	case e.Kind == session.EntryStopped || e.Status == "error" || e.Status == "failed" || e.Status == "stop failed":
		return LogErrorStyle
	case e.Kind == session.EntryKernel:
		return LogKernelStyle
	case e.Status == "complete" || e.Status == "done" || e.Status == "completed":
		return LogSuccessStyle
	default:
		return LogEventStyle
	}
}
