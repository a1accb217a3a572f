// ABOUTME: The serve subcommand: runs the browser dashboard until interrupted.
// ABOUTME: Runs started from the browser use the configured transport and kernel channel.
package main

import (
	"context"
	"fmt"
	"io"

	"github.com/2389-research/mop/config"
	"github.com/2389-research/mop/web"
)

func runServe(ctx context.Context, cfg config.Config, stderr io.Writer) int {
	logger := stderrLogger(cfg, stderr)
	rt := newRuntime(cfg, logger)
	defer rt.session.Close()

	srv, err := web.NewServer(web.ServerConfig{
		Addr:      cfg.Server.Addr,
		Session:   rt.session,
		Transport: rt.transport,
		Kernel:    rt.kernel,
		Catalog:   cfg,
		Projector: rt.projector,
		Logger:    logger,
	})
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailed
	}

	fmt.Fprintf(stderr, "mop dashboard on http://%s (analysis server %s)\n", srv.Addr(), cfg.BackURL)
	if err := srv.ListenAndServe(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailed
	}
	return exitOK
}
