// ABOUTME: Tests for the TUI building blocks: document rendering, status markers, kernel panel, log and status bar.
// ABOUTME: Renders without a terminal, so output is compared as plain text.
package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/2389-research/mop/kernel"
	"github.com/2389-research/mop/normalize"
	"github.com/2389-research/mop/project"
	"github.com/2389-research/mop/reconcile"
	"github.com/2389-research/mop/session"
)

func TestRenderDocument(t *testing.T) {
	doc := normalize.Render("## Title\n### Sub\nsome **bold** text")
	out := RenderDocument(doc, 0, 2)
	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), out)
	}
	for i, want := range []string{"Title", "Sub", "bold"} {
		if !strings.Contains(lines[i], want) {
			t.Errorf("line %d: expected %q, got %q", i, want, lines[i])
		}
		if !strings.HasPrefix(lines[i], "  ") {
			t.Errorf("line %d: expected indent, got %q", i, lines[i])
		}
	}
	if strings.Contains(out, "**") || strings.Contains(out, "#") {
		t.Errorf("markup must be rendered, got %q", out)
	}
}

func TestRenderDocumentWraps(t *testing.T) {
	doc := normalize.Render("alpha beta gamma delta")
	out := RenderDocument(doc, 12, 0)
	if n := len(strings.Split(out, "\n")); n < 2 {
		t.Errorf("expected wrapped output, got %q", out)
	}
	if RenderDocument(normalize.Document{}, 80, 2) != "" {
		t.Error("empty document renders as empty string")
	}
}

func TestIconsAndGlyphs(t *testing.T) {
	tests := []struct {
		status project.Status
		icon   string
		glyph  string
	}{
		{project.StatusPending, "[ ]", " "},
		{project.StatusQueued, "[.]", "…"},
		{project.StatusThinking, "[~]", SpinnerFrames[3]},
		{project.StatusComplete, "[*]", "✓"},
		{project.StatusError, "[!]", "✗"},
	}
	for _, tt := range tests {
		if got := Icon(tt.status); got != tt.icon {
			t.Errorf("Icon(%s) = %q, want %q", tt.status, got, tt.icon)
		}
		if got := Glyph(tt.status, 3); got != tt.glyph {
			t.Errorf("Glyph(%s) = %q, want %q", tt.status, got, tt.glyph)
		}
	}
}

func TestCardCaption(t *testing.T) {
	tests := []struct {
		card project.Card
		want string
	}{
		{project.Card{Status: project.StatusThinking, Message: "Reading"}, "Reading"},
		{project.Card{Status: project.StatusThinking}, "thinking..."},
		{project.Card{Status: project.StatusQueued}, QueuedText},
		{project.Card{Status: project.StatusError, Message: "boom"}, "error: boom"},
		{project.Card{Status: project.StatusComplete, Stage: reconcile.Int(2)}, "stage 2"},
		{project.Card{Status: project.StatusPending}, ""},
	}
	for _, tt := range tests {
		if got := cardCaption(tt.card); got != tt.want {
			t.Errorf("cardCaption(%+v) = %q, want %q", tt.card, got, tt.want)
		}
	}
}

func TestKernelStates(t *testing.T) {
	tests := []struct {
		name     string
		snap     session.Snapshot
		status   string
		info     string
		canStop  bool
		canReset bool
	}{
		{"idle", session.Snapshot{}, "Active", "Press Hard Stop", false, false},
		{"running", session.Snapshot{Active: true}, "Active", "Press Hard Stop", true, false},
		{"stopping", session.Snapshot{Active: true, Stopping: true}, "Stopping...", "Stop command sent", false, false},
		{"stopped", session.Snapshot{KernelStopped: true}, "Hard Stop Active", "Analysis has been stopped.", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Status(tt.snap); got != tt.status {
				t.Errorf("Status = %q, want %q", got, tt.status)
			}
			if got := Info(tt.snap); !strings.HasPrefix(got, tt.info) {
				t.Errorf("Info = %q, want prefix %q", got, tt.info)
			}
			if CanStop(tt.snap) != tt.canStop || CanReset(tt.snap) != tt.canReset {
				t.Errorf("CanStop=%v CanReset=%v", CanStop(tt.snap), CanReset(tt.snap))
			}
		})
	}
}

func TestKernelPanelHistory(t *testing.T) {
	m := NewKernelPanelModel()
	if !m.ToggleHistory() {
		t.Fatal("expected history open")
	}
	if !strings.Contains(m.HistoryView(), "Loading...") {
		t.Error("expected loading state")
	}

	m.SetHistory(nil, nil)
	if !strings.Contains(m.HistoryView(), "No stop events recorded yet.") {
		t.Error("expected empty history text")
	}

	m.SetHistory([]kernel.Event{
		{Timestamp: "not a time", Action: "reset"},
		{Timestamp: "also bad", Action: "stop", Status: "success"},
	}, nil)
	view := m.HistoryView()
	if !strings.Contains(view, "not a time  Reset") || !strings.Contains(view, "Stop  success") {
		t.Errorf("unexpected history view:\n%s", view)
	}

	m.SetHistory(nil, errors.New("unreachable"))
	if len(m.history) != 2 {
		t.Error("a failed refresh keeps the previous history")
	}
	if !strings.Contains(m.StatusLine(session.Snapshot{}), "unreachable") {
		t.Error("expected error in status line")
	}

	panel := m.View(session.Snapshot{Stopping: true}, 60)
	if !strings.Contains(panel, "Stop command sent, waiting for current agent...") {
		t.Errorf("expected stopping notice, got:\n%s", panel)
	}
}

func TestLogPanel(t *testing.T) {
	m := NewLogPanelModel()
	m.SetSize(80, 10)
	if !strings.Contains(m.View(), "No events yet") {
		t.Error("expected empty log text")
	}

	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	m.SetEntries([]session.LogEntry{
		{ID: "1", Time: ts, Kind: session.EntryUpdate, Agent: "analysis", Status: "thinking", Message: "Starting\nanalysis..."},
		{ID: "2", Time: ts, Kind: session.EntryKernel, Status: "stopped"},
	})
	if m.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", m.Len())
	}
	view := m.View()
	if !strings.Contains(view, "09:30:00 update [analysis] thinking Starting analysis...") {
		t.Errorf("unexpected log view:\n%s", view)
	}
	if !strings.Contains(view, "kernel stopped") {
		t.Errorf("expected kernel entry, got:\n%s", view)
	}
}

func TestStatusBar(t *testing.T) {
	m := NewStatusBarModel()
	m.SetWidth(120)
	m.SetRun("0123456789abcdef", 75*time.Second)
	m.SetProgress(2, 5)
	m.SetActiveAgent("Critic Agent")
	view := m.View()
	for _, want := range []string{"Run: 01234567", "Elapsed: 1m15s", "2/5 agents", "Thinking: Critic Agent", "Kernel: Active"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in %q", want, view)
		}
	}
	m.SetActiveAgent("")
	if !strings.Contains(m.View(), "Thinking: idle") {
		t.Error("expected idle when nothing is thinking")
	}
}

func TestBridgeCommands(t *testing.T) {
	opts := testOptions(nil)
	msg := RunCmd(context.Background(), opts.Session, opts.Transport, "p")()
	res, ok := msg.(RunResultMsg)
	if !ok {
		t.Fatalf("expected RunResultMsg, got %T", msg)
	}
	if res.Err != nil || res.Snapshot.Outcome != session.OutcomeCompleted {
		t.Errorf("unexpected result %+v", res)
	}

	ch := make(chan session.Snapshot)
	close(ch)
	if WaitForSnapshotCmd(ch)() != nil {
		t.Error("closed subscription should end the loop")
	}

	k := &fakeKernel{history: []kernel.Event{{Action: "stop"}}}
	if h, ok := HistoryCmd(context.Background(), k)().(HistoryMsg); !ok || len(h.Events) != 1 {
		t.Errorf("unexpected history msg %+v", h)
	}
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if e, ok := ExportCmd(context.Background(), k, "out", now)().(ExportMsg); !ok || e.Path != "out/kernel_stop_history_2026-03-01.xlsx" {
		t.Errorf("unexpected export msg %+v", e)
	}
}
