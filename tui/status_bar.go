// ABOUTME: Implements a single-line status bar for the bottom of the dashboard showing run progress.
// ABOUTME: Displays the run ID, elapsed time, finished agent count, kernel state and the agent currently thinking.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// StatusBarModel displays run status in a single line.
type StatusBarModel struct {
	runID    string
	elapsed  time.Duration
	total    int
	finished int
	active   string
	kernel   string
	width    int
}

// NewStatusBarModel creates an empty status bar.
func NewStatusBarModel() StatusBarModel {
	return StatusBarModel{kernel: "Active"}
}

// SetRun updates the run identity and timing.
func (m *StatusBarModel) SetRun(runID string, elapsed time.Duration) {
	m.runID = runID
	m.elapsed = elapsed
}

// SetProgress updates the finished and total agent counts.
func (m *StatusBarModel) SetProgress(finished, total int) {
	m.finished = finished
	m.total = total
}

// SetActiveAgent sets the agent currently thinking.
func (m *StatusBarModel) SetActiveAgent(name string) {
	m.active = name
}

// SetKernel sets the kernel state label.
func (m *StatusBarModel) SetKernel(state string) {
	m.kernel = state
}

// SetWidth sets the bar width for rendering.
func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

// formatElapsed formats a duration as a human-readable string.
// Durations under a minute show as seconds (e.g. "12s").
// Durations of a minute or more show as minutes and seconds (e.g. "2m30s").
func formatElapsed(d time.Duration) string {
	d = d.Truncate(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) - minutes*60
	return fmt.Sprintf("%dm%ds", minutes, seconds)
}

// View renders the status bar as a single styled line.
func (m StatusBarModel) View() string {
	active := m.active
	if active == "" {
		active = "idle"
	}
	run := m.runID
	if len(run) > 8 {
		run = run[:8]
	}
	if run == "" {
		run = "-"
	}

	content := fmt.Sprintf("Run: %s | Elapsed: %s | %d/%d agents | Thinking: %s | Kernel: %s",
		run, formatElapsed(m.elapsed), m.finished, m.total, active, m.kernel)

	style := StatusBarStyle.Width(m.width)
	return lipgloss.PlaceHorizontal(m.width, lipgloss.Left, style.Render(content))
}
