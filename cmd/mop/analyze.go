// ABOUTME: Runs one analysis: inline or full-screen terminal UI, or plain line output when not on a terminal.
// ABOUTME: Optionally writes a report and returns the exit code for the run outcome.
package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/mop/config"
	"github.com/2389-research/mop/project"
	"github.com/2389-research/mop/render"
	"github.com/2389-research/mop/session"
	"github.com/2389-research/mop/tui"
)

// idleWait bounds how long a quit terminal UI waits for its run to wind down.
const idleWait = 5 * time.Second

func runAnalyze(ctx context.Context, cli cliConfig, cfg config.Config, problem string, stdout, stderr io.Writer) int {
	interactive := !cli.plain && isTerminal(stdout)

	var rt runtime
	var snap session.Snapshot
	var err error
	if interactive {
		logger, closeLog := fileLogger(cfg)
		defer closeLog()
		rt = newRuntime(cfg, logger)
		snap, err = runTUI(ctx, cli, cfg, rt, problem)
	} else {
		rt = newRuntime(cfg, stderrLogger(cfg, stderr))
		snap, err = runPlain(ctx, cfg, rt, problem, stdout)
	}
	defer rt.session.Close()

	if cli.reportPath != "" {
		rep := render.FromSnapshot(snap, cfg, rt.projector, time.Now())
		if werr := rep.WriteFile(cli.reportPath); werr != nil {
			fmt.Fprintf(stderr, "error: %v\n", werr)
		} else {
			fmt.Fprintf(stderr, "report written to %s\n", cli.reportPath)
		}
	}

	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
	}
	return exitCode(snap.Outcome)
}

// runTUI runs the inline view, or the dashboard with --dashboard, and
// returns the final snapshot of the run.
func runTUI(ctx context.Context, cli cliConfig, cfg config.Config, rt runtime, problem string) (session.Snapshot, error) {
	opts := tui.Options{
		Session:   rt.session,
		Transport: rt.transport,
		Kernel:    rt.kernel,
		Projector: rt.projector,
		Catalog:   cfg,
		Problem:   problem,
		ExportDir: ".",
	}

	var model tea.Model
	var results <-chan tui.RunResultMsg
	programOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if cli.dashboard {
		m := tui.NewAppModel(ctx, opts)
		model, results = m, m.ResultCh()
		programOpts = append(programOpts, tea.WithAltScreen())
	} else {
		m := tui.NewStreamModel(ctx, opts)
		model, results = m, m.ResultCh()
	}

	if _, err := tea.NewProgram(model, programOpts...).Run(); err != nil && ctx.Err() == nil {
		return rt.session.Snapshot(), fmt.Errorf("terminal ui: %w", err)
	}

	select {
	case res := <-results:
		return res.Snapshot, res.Err
	default:
	}
	// The user quit before the result arrived; the run was cancelled.
	return waitIdle(rt.session, idleWait), nil
}

// waitIdle returns the first snapshot without an active run, or the latest
// one once timeout passes.
func waitIdle(s *session.Session, timeout time.Duration) session.Snapshot {
	updates, unsubscribe := s.Subscribe()
	defer unsubscribe()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case snap, ok := <-updates:
			if !ok || !snap.Active {
				return s.Snapshot()
			}
		case <-timer.C:
			return s.Snapshot()
		}
	}
}

// runPlain drives the run without a terminal UI, printing each new log entry
// as it arrives and a summary at the end.
func runPlain(ctx context.Context, cfg config.Config, rt runtime, problem string, w io.Writer) (session.Snapshot, error) {
	updates, unsubscribe := rt.session.Subscribe()
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		var p plainPrinter
		for snap := range updates {
			p.print(w, snap)
		}
	}()

	snap, err := rt.session.Run(ctx, rt.transport, problem)
	unsubscribe()
	<-printed

	printSummary(w, snap, cfg, rt.projector)
	return snap, err
}

// plainPrinter prints log entries it has not printed before.
type plainPrinter struct {
	lastID string
}

func (p *plainPrinter) print(w io.Writer, snap session.Snapshot) {
	start := 0
	if p.lastID != "" {
		for i, e := range snap.Log {
			if e.ID == p.lastID {
				start = i + 1
				break
			}
		}
	}
	for _, e := range snap.Log[start:] {
		fmt.Fprintln(w, formatLogLine(e))
		p.lastID = e.ID
	}
}

func formatLogLine(e session.LogEntry) string {
	parts := []string{e.Time.Format("15:04:05"), e.Kind}
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

func printSummary(w io.Writer, snap session.Snapshot, cfg config.Config, p *project.Projector) {
	cards := p.Project(snap.State, snap.Active)
	pr := project.Summarize(cards)

	fmt.Fprintln(w)
	line := fmt.Sprintf("%d/%d agents finished", pr.Finished(), pr.Total)
	if snap.Outcome != session.OutcomeNone {
		line += " · " + string(snap.Outcome)
	}
	if snap.Err != "" {
		line += ": " + snap.Err
	}
	fmt.Fprintln(w, line)

	for _, c := range cards {
		a := cfg.Agent(c.Agent)
		fmt.Fprintf(w, "  %s %s: %s\n", a.Icon, a.Title(), c.Status)
	}

	if doc, ok := p.FinalInsights(snap.State, cfg.FinalAgent()); ok {
		a := cfg.Agent(cfg.FinalAgent())
		fmt.Fprintf(w, "\n%s %s\n", a.Icon, a.Title())
		for _, l := range doc.Lines() {
			fmt.Fprintln(w, "  "+l)
		}
	}
}
