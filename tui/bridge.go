// ABOUTME: Bridge connecting the session controller and kernel channel to the Bubble Tea message loop.
// ABOUTME: Provides tea.Cmd factories for runs, snapshot subscription, kernel commands and ticks.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/mop/kernel"
	"github.com/2389-research/mop/session"
	"github.com/2389-research/mop/stream"
)

// Kernel is the administrative surface the TUI drives.
type Kernel interface {
	session.Stopper
	session.Resetter
	History(ctx context.Context) ([]kernel.Event, error)
	SaveExport(ctx context.Context, path string, now time.Time) (string, error)
}

// RunCmd returns a tea.Cmd that drives one run of problem through t. When
// the run finishes it sends a RunResultMsg.
func RunCmd(ctx context.Context, s *session.Session, t stream.Transport, problem string) tea.Cmd {
	return func() tea.Msg {
		snap, err := s.Run(ctx, t, problem)
		return RunResultMsg{Snapshot: snap, Err: err}
	}
}

// WaitForSnapshotCmd blocks on a subscription channel and sends the next
// snapshot as a SnapshotMsg. A closed channel ends the loop.
func WaitForSnapshotCmd(ch <-chan session.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return SnapshotMsg{Snapshot: snap}
	}
}

// TickCmd returns a tea.Cmd that sends a TickMsg after the given interval.
// Used for spinner animation and elapsed-time refreshes.
func TickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// StopCmd issues the hard stop through the session so the overlay and the
// run reset follow the command.
func StopCmd(ctx context.Context, s *session.Session, k Kernel) tea.Cmd {
	return func() tea.Msg {
		return KernelResultMsg{Action: kernel.ActionStop, Err: s.Stop(ctx, k)}
	}
}

// ResetCmd clears the hard stop.
func ResetCmd(ctx context.Context, s *session.Session, k Kernel) tea.Cmd {
	return func() tea.Msg {
		return KernelResultMsg{Action: kernel.ActionReset, Err: s.Reset(ctx, k)}
	}
}

// HistoryCmd fetches the stop history.
func HistoryCmd(ctx context.Context, k Kernel) tea.Cmd {
	return func() tea.Msg {
		events, err := k.History(ctx)
		return HistoryMsg{Events: events, Err: err}
	}
}

// ExportCmd downloads the history export into dir.
func ExportCmd(ctx context.Context, k Kernel, dir string, now time.Time) tea.Cmd {
	return func() tea.Msg {
		path, err := k.SaveExport(ctx, dir, now)
		return ExportMsg{Path: path, Err: err}
	}
}
