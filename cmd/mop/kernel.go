// ABOUTME: The kernel subcommand: stop, reset, list the stop history, or export it to a file.
// ABOUTME: Talks to the analysis server directly without starting a run.
package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/2389-research/mop/client"
	"github.com/2389-research/mop/config"
	"github.com/2389-research/mop/kernel"
)

func runKernel(ctx context.Context, cli cliConfig, cfg config.Config, stdout, stderr io.Writer) int {
	logger := stderrLogger(cfg, stderr)
	ch := kernel.New(client.New(cfg.BackURL, client.WithLogger(logger)), logger)

	if err := kernelAction(ctx, ch, cli.args[0], cli.output, stdout); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailed
	}
	return exitOK
}

func kernelAction(ctx context.Context, ch *kernel.Channel, action, output string, w io.Writer) error {
	switch action {
	case "stop":
		if err := ch.Stop(ctx); err != nil {
			return err
		}
		fmt.Fprintln(w, "Hard stop sent. Analysis has been stopped.")
	case "reset":
		if err := ch.Reset(ctx); err != nil {
			return err
		}
		fmt.Fprintln(w, "Kernel reset. Analyses may run again.")
	case "history":
		events, err := ch.History(ctx)
		if err != nil {
			return err
		}
		printHistory(w, events)
	case "export":
		path, err := ch.SaveExport(ctx, output, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Stop history exported to %s\n", path)
	default:
		return fmt.Errorf("unknown kernel action %q", action)
	}
	return nil
}

func printHistory(w io.Writer, events []kernel.Event) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No stop events recorded yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tACTION\tSTATUS")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.When(), e.Label(), e.Status)
	}
	tw.Flush()
}
