// ABOUTME: Bubble Tea message types used in the TUI message loop.
// ABOUTME: Each type wraps a session snapshot, a run result, or the outcome of a kernel command.
package tui

import (
	"time"

	"github.com/2389-research/mop/kernel"
	"github.com/2389-research/mop/session"
)

// SnapshotMsg carries the latest session snapshot.
type SnapshotMsg struct {
	Snapshot session.Snapshot
}

// RunResultMsg signals that a run has finished.
type RunResultMsg struct {
	Snapshot session.Snapshot
	Err      error
}

// TickMsg is sent periodically to update timers and spinners.
type TickMsg struct {
	Time time.Time
}

// KernelResultMsg reports the outcome of a stop or reset command.
type KernelResultMsg struct {
	Action string
	Err    error
}

// HistoryMsg carries the stop history, newest first.
type HistoryMsg struct {
	Events []kernel.Event
	Err    error
}

// ExportMsg reports where the history export was written.
type ExportMsg struct {
	Path string
	Err  error
}
