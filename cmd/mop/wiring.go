// ABOUTME: Builds the runtime object graph from configuration: client, transport, kernel, projector, session.
// ABOUTME: Shared by the analysis run, the dashboard server and the kernel subcommands.
package main

import (
	"log/slog"

	"github.com/2389-research/mop/client"
	"github.com/2389-research/mop/config"
	"github.com/2389-research/mop/kernel"
	"github.com/2389-research/mop/normalize"
	"github.com/2389-research/mop/project"
	"github.com/2389-research/mop/session"
	"github.com/2389-research/mop/stream"
)

type runtime struct {
	client    *client.Client
	transport stream.Transport
	kernel    *kernel.Channel
	projector *project.Projector
	session   *session.Session
}

func newRuntime(cfg config.Config, logger *slog.Logger) runtime {
	c := client.New(cfg.BackURL, client.WithLogger(logger))

	var t stream.Transport
	switch cfg.Transport {
	case config.TransportSequential:
		st := stream.NewSequentialTransport(c, cfg.PipelineAgents(), logger)
		st.Iteration = cfg.Iteration
		t = st
	default:
		t = stream.NewSSETransport(c, logger)
	}

	opts := []session.Option{
		session.WithLogger(logger),
		session.WithMaxLog(cfg.MaxLog),
	}
	// The first pipeline agent is shown working before the server answers.
	if agents := cfg.PipelineAgents(); len(agents) > 0 {
		seed := session.DefaultSeed()
		seed.Agent = agents[0]
		opts = append(opts, session.WithSeed(seed))
	}

	cache := normalize.NewCache(cfg.CacheTTL)
	return runtime{
		client:    c,
		transport: t,
		kernel:    kernel.New(c, logger),
		projector: project.New(cfg.CardAgents(), cache.Normalize),
		session:   session.New(opts...),
	}
}
