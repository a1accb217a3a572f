// ABOUTME: Run controller shared by the inline and dashboard models: subscription, projection and kernel keys.
// ABOUTME: Holds the latest snapshot and its projected cards; models embed it and add their own layout.
package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/mop/config"
	"github.com/2389-research/mop/kernel"
	"github.com/2389-research/mop/normalize"
	"github.com/2389-research/mop/project"
	"github.com/2389-research/mop/session"
	"github.com/2389-research/mop/stream"
)

// tickInterval drives the spinner and elapsed time.
const tickInterval = 100 * time.Millisecond

// Options wires a TUI model to its collaborators.
type Options struct {
	Session   *session.Session
	Transport stream.Transport
	Kernel    Kernel
	Projector *project.Projector
	Catalog   config.Config
	Problem   string
	// ExportDir receives stop history exports; empty means the working directory.
	ExportDir string
}

type controller struct {
	opts    Options
	ctx     context.Context
	cancel  context.CancelFunc
	updates <-chan session.Snapshot
	unsub   func()
	results chan RunResultMsg
	now     func() time.Time

	snap    session.Snapshot
	cards   []project.Card
	final   *normalize.Document
	kernel  KernelPanelModel
	spinner int
	done    bool
	err     error
}

func newController(ctx context.Context, opts Options) controller {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Projector == nil {
		opts.Projector = project.New(opts.Catalog.CardAgents(), nil)
	}
	ctx, cancel := context.WithCancel(ctx)
	updates, unsub := opts.Session.Subscribe()
	c := controller{
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		updates: updates,
		unsub:   unsub,
		results: make(chan RunResultMsg, 1),
		now:     time.Now,
		kernel:  NewKernelPanelModel(),
	}
	c.apply(opts.Session.Snapshot())
	return c
}

// init starts the run, the snapshot loop and the ticker.
func (c *controller) init() tea.Cmd {
	return tea.Batch(
		RunCmd(c.ctx, c.opts.Session, c.opts.Transport, c.opts.Problem),
		WaitForSnapshotCmd(c.updates),
		TickCmd(tickInterval),
	)
}

// apply projects snap. Snapshots older than the one held are ignored.
func (c *controller) apply(snap session.Snapshot) {
	if snap.Seq < c.snap.Seq {
		return
	}
	c.snap = snap
	c.cards = c.opts.Projector.Project(snap.State, snap.Active)
	c.final = nil
	if doc, ok := c.opts.Projector.FinalInsights(snap.State, c.opts.Catalog.FinalAgent()); ok {
		c.final = &doc
	}
}

// quit cancels any run, ends the subscription and exits the program.
func (c *controller) quit() tea.Cmd {
	c.cancel()
	c.unsub()
	return tea.Quit
}

// publishResult hands the latest result to ResultCh, replacing an unread one.
func (c *controller) publishResult(msg RunResultMsg) {
	select {
	case <-c.results:
	default:
	}
	c.results <- msg
}

// handle processes the messages common to every model. It reports whether
// msg was consumed.
func (c *controller) handle(msg tea.Msg) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	case SnapshotMsg:
		c.apply(msg.Snapshot)
		return WaitForSnapshotCmd(c.updates), true

	case RunResultMsg:
		c.apply(msg.Snapshot)
		c.done = true
		c.err = msg.Err
		c.publishResult(msg)
		return nil, true

	case TickMsg:
		c.spinner++
		if c.done {
			return nil, true
		}
		return TickCmd(tickInterval), true

	case KernelResultMsg:
		return c.handleKernelResult(msg), true

	case HistoryMsg:
		c.kernel.SetHistory(msg.Events, msg.Err)
		return nil, true

	case ExportMsg:
		c.kernel.SetResult("History exported to "+msg.Path, msg.Err)
		return nil, true
	}
	return nil, false
}

func (c *controller) handleKernelResult(msg KernelResultMsg) tea.Cmd {
	if msg.Err != nil {
		c.kernel.SetResult("", msg.Err)
		return nil
	}
	var cmds []tea.Cmd
	switch msg.Action {
	case kernel.ActionStop:
		c.kernel.SetResult("Stop command accepted.", nil)
	case kernel.ActionReset:
		c.kernel.SetResult("Kernel reset.", nil)
		// Continue: a reset after a halted run starts the problem again.
		if c.done && c.opts.Problem != "" {
			c.done = false
			c.err = nil
			cmds = append(cmds,
				RunCmd(c.ctx, c.opts.Session, c.opts.Transport, c.opts.Problem),
				TickCmd(tickInterval))
		}
	}
	if c.kernel.HistoryOpen() {
		cmds = append(cmds, HistoryCmd(c.ctx, c.opts.Kernel))
	}
	return tea.Batch(cmds...)
}

// handleKey processes the kernel and quit keys. It reports whether the key
// was consumed.
func (c *controller) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c", "q":
		return c.quit(), true

	case "s":
		if c.opts.Kernel == nil || !CanStop(c.snap) {
			return nil, true
		}
		return StopCmd(c.ctx, c.opts.Session, c.opts.Kernel), true

	case "r":
		if c.opts.Kernel == nil || !CanReset(c.snap) {
			return nil, true
		}
		return ResetCmd(c.ctx, c.opts.Session, c.opts.Kernel), true

	case "h":
		if c.opts.Kernel == nil {
			return nil, true
		}
		if c.kernel.ToggleHistory() {
			return HistoryCmd(c.ctx, c.opts.Kernel), true
		}
		return nil, true

	case "e":
		if c.opts.Kernel == nil {
			return nil, true
		}
		return ExportCmd(c.ctx, c.opts.Kernel, c.opts.ExportDir, c.now()), true
	}
	return nil, false
}

// progressLine summarizes the run.
func (c controller) progressLine() string {
	pr := project.Summarize(c.cards)
	elapsed := formatDuration(c.snap.Elapsed(c.now()))
	counts := fmt.Sprintf("%d/%d agents finished · %s", pr.Finished(), pr.Total, elapsed)

	switch {
	case c.snap.Active:
		return PendingStyle.Render("  " + counts + " elapsed")
	case c.snap.Outcome == session.OutcomeCompleted || c.snap.Outcome == session.OutcomeEnded:
		return CompleteStyle.Render(fmt.Sprintf("  ✓ %s · %s", counts, c.snap.Outcome))
	case c.snap.Outcome == session.OutcomeNone:
		return PendingStyle.Render("  starting...")
	default:
		line := fmt.Sprintf("  ✗ %s · %s", counts, c.snap.Outcome)
		if c.snap.Err != "" {
			line += ": " + c.snap.Err
		}
		return ErrorStyle.Render(line)
	}
}

// ResultCh returns a channel holding the most recent run result. Read it
// after the program exits.
func (c controller) ResultCh() <-chan RunResultMsg {
	return c.results
}

// formatDuration formats a duration as a human-readable string like "0.1s" or "2m03s".
func formatDuration(d time.Duration) string {
	secs := d.Seconds()
	if secs < 10 {
		return fmt.Sprintf("%.1fs", secs)
	}
	if secs < 60 {
		return fmt.Sprintf("%.0fs", secs)
	}
	mins := int(secs) / 60
	remainSecs := int(secs) % 60
	return fmt.Sprintf("%dm%02ds", mins, remainSecs)
}
