// ABOUTME: Defines lipgloss style constants for the TUI panels, card status colors, documents and log formatting.
// ABOUTME: Provides StyleForStatus to map projected card statuses to their display styles.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/mop/project"
)

var (
	// Panel borders
	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))
	FocusedBorderStyle = BorderStyle.
				BorderForeground(lipgloss.Color("170"))

	// Title styling
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	// Status colors
	PendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	QueuedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	ThinkingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	CompleteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	ErrorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	// Normalized documents
	Heading2Style = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color("170"))
	Heading3Style = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75"))
	StrongStyle   = lipgloss.NewStyle().Bold(true)
	FinalStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("141"))

	// Log entry colors
	LogTimestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	LogEventStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	LogErrorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	LogSuccessStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	LogKernelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	// Status bar
	StatusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)

	// Detail panel labels
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(11)
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	// Kernel control
	KernelStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(0, 1)
	KernelStoppedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	KernelActiveStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	HintStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// StyleForStatus returns the lipgloss style for a projected card status.
func StyleForStatus(status project.Status) lipgloss.Style {
	switch status {
	case project.StatusComplete:
		return CompleteStyle
	case project.StatusError:
		return ErrorStyle
	case project.StatusThinking:
		return ThinkingStyle
	case project.StatusQueued:
		return QueuedStyle
	default:
		return PendingStyle
	}
}

// AgentStyle colors an agent name with its catalog color, if it has one.
func AgentStyle(color string) lipgloss.Style {
	s := lipgloss.NewStyle().Bold(true)
	if color != "" {
		s = s.Foreground(lipgloss.Color(color))
	}
	return s
}
