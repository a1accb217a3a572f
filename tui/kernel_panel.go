// ABOUTME: Kernel control panel: hard stop state, the action currently available, and the stop history.
// ABOUTME: Shared by the inline view and the dashboard; reads the stop overlay from session snapshots.
package tui

import (
	"fmt"
	"strings"

	"github.com/2389-research/mop/kernel"
	"github.com/2389-research/mop/session"
)

// KernelPanelModel tracks the kernel control display state.
type KernelPanelModel struct {
	historyOpen bool
	loading     bool
	history     []kernel.Event
	notice      string
	err         error
}

// NewKernelPanelModel creates a closed panel.
func NewKernelPanelModel() KernelPanelModel {
	return KernelPanelModel{}
}

// ToggleHistory opens or closes the history list and reports whether it is
// now open. Opening marks the list as loading.
func (m *KernelPanelModel) ToggleHistory() bool {
	m.historyOpen = !m.historyOpen
	if m.historyOpen {
		m.loading = true
	}
	return m.historyOpen
}

// HistoryOpen reports whether the history list is shown.
func (m KernelPanelModel) HistoryOpen() bool {
	return m.historyOpen
}

// SetHistory stores a fetched history.
func (m *KernelPanelModel) SetHistory(events []kernel.Event, err error) {
	m.loading = false
	if err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.history = events
}

// SetResult records the outcome of a kernel command or export.
func (m *KernelPanelModel) SetResult(notice string, err error) {
	m.err = err
	if err == nil {
		m.notice = notice
	} else {
		m.notice = ""
	}
}

// Status returns the kernel state label.
func Status(snap session.Snapshot) string {
	switch {
	case snap.Stopping:
		return "Stopping..."
	case snap.KernelStopped:
		return "Hard Stop Active"
	default:
		return "Active"
	}
}

// Info explains what the stop does in the current state.
func Info(snap session.Snapshot) string {
	switch {
	case snap.Stopping || (snap.KernelStopped && snap.Active):
		return "Stop command sent. Analysis will stop after the current agent completes its work."
	case snap.KernelStopped:
		return "Analysis has been stopped."
	default:
		return "Press Hard Stop to halt analysis after current agent."
	}
}

// CanStop reports whether the hard stop key is live.
func CanStop(snap session.Snapshot) bool {
	return snap.Active && !snap.Stopping && !snap.KernelStopped
}

// CanReset reports whether reset & continue is offered.
func CanReset(snap session.Snapshot) bool {
	return snap.KernelStopped && !snap.Active && !snap.Stopping
}

// Hints lists the keys usable right now.
func Hints(snap session.Snapshot, historyOpen bool) string {
	var keys []string
	switch {
	case CanStop(snap):
		keys = append(keys, "s hard stop")
	case CanReset(snap):
		keys = append(keys, "r reset & continue")
	}
	if historyOpen {
		keys = append(keys, "h hide history", "e export")
	} else {
		keys = append(keys, "h stop history")
	}
	keys = append(keys, "q quit")
	return strings.Join(keys, " · ")
}

// StatusLine is the one-line kernel summary.
func (m KernelPanelModel) StatusLine(snap session.Snapshot) string {
	status := Status(snap)
	style := KernelActiveStyle
	if snap.Stopping || snap.KernelStopped {
		style = KernelStoppedStyle
	}
	line := "Kernel: " + style.Render(status) + "  " + HintStyle.Render(Info(snap))
	switch {
	case m.err != nil:
		line += "\n" + ErrorStyle.Render("  "+m.err.Error())
	case m.notice != "":
		line += "\n" + HintStyle.Render("  "+m.notice)
	}
	return line
}

// HistoryView renders the stop history list.
func (m KernelPanelModel) HistoryView() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Stop History"))
	b.WriteString("\n")
	switch {
	case m.loading:
		b.WriteString(HintStyle.Render("Loading..."))
	case len(m.history) == 0:
		b.WriteString(HintStyle.Render("No stop events recorded yet."))
	default:
		for i, e := range m.history {
			if i > 0 {
				b.WriteString("\n")
			}
			style := KernelActiveStyle
			if e.Action == kernel.ActionStop {
				style = KernelStoppedStyle
			}
			line := fmt.Sprintf("%s  %s", LogTimestampStyle.Render(e.When()), style.Render(e.Label()))
			if e.Status != "" {
				line += "  " + HintStyle.Render(e.Status)
			}
			b.WriteString(line)
		}
	}
	return b.String()
}

// View renders the full kernel panel.
func (m KernelPanelModel) View(snap session.Snapshot, width int) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Kernel Control"))
	b.WriteString("\n")
	b.WriteString(m.StatusLine(snap))
	if snap.Stopping || snap.KernelStopped {
		decided := "Hardstop decided"
		if snap.Stopping {
			decided = "Stop command sent, waiting for current agent..."
		}
		b.WriteString("\n")
		b.WriteString(KernelStoppedStyle.Render(decided))
	}
	if m.historyOpen {
		b.WriteString("\n\n")
		b.WriteString(m.HistoryView())
	}
	b.WriteString("\n")
	b.WriteString(HintStyle.Render(Hints(snap, m.historyOpen)))

	style := KernelStyle
	if width > 4 {
		style = style.Width(width - 4)
	}
	return style.Render(b.String())
}
