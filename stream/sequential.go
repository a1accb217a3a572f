// ABOUTME: Sequential transport: one synchronous call per agent, in pipeline order.
// ABOUTME: Each call result is turned into the same events the streaming transport produces.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/2389-research/mop/client"
	"github.com/2389-research/mop/reconcile"
)

// AgentPathFormat is the per-agent endpoint; %s is the escaped agent ID.
const AgentPathFormat = "/agents/%s"

type agentRequest struct {
	Problem   string            `json:"problem"`
	Iteration int               `json:"iteration"`
	Context   map[string]string `json:"context,omitempty"`
}

type agentReply struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
	Message  string          `json:"message"`
}

// SequentialTransport invokes each agent in turn, passing the responses of
// earlier agents as context.
type SequentialTransport struct {
	Client    *client.Client
	Agents    []string
	Iteration int
	Logger    *slog.Logger
}

// NewSequentialTransport creates a sequential transport calling agents in order.
func NewSequentialTransport(c *client.Client, agents []string, logger *slog.Logger) *SequentialTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &SequentialTransport{Client: c, Agents: agents, Iteration: 1, Logger: logger}
}

// Run calls every agent. A "complete" reply becomes a complete update, a
// "stopped" reply halts the run, and any other reply becomes an error update
// that ends the run.
func (t *SequentialTransport) Run(ctx context.Context, problem string, h Handler) (Result, error) {
	var res Result
	prior := make(map[string]string, len(t.Agents))
	iteration := t.Iteration
	if iteration < 1 {
		iteration = 1
	}

	for i, agent := range t.Agents {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		stage := i + 1

		h(Event{Kind: KindUpdate, Update: reconcile.Update{
			Agent:     agent,
			Stage:     reconcile.Int(stage),
			Iteration: reconcile.Int(iteration),
			Status:    reconcile.StatusThinking,
			Message:   fmt.Sprintf("Running %s...", agent),
		}})

		var reply agentReply
		path := fmt.Sprintf(AgentPathFormat, url.PathEscape(agent))
		req := agentRequest{Problem: problem, Iteration: iteration, Context: prior}
		if err := t.Client.JSON(ctx, http.MethodPost, path, req, &reply); err != nil {
			return res, fmt.Errorf("agent %s: %w", agent, err)
		}
		response, err := reconcile.RawText(reply.Response)
		if err != nil {
			return res, fmt.Errorf("agent %s: decoding response: %w", agent, err)
		}
		res.Stats.Accepted++

		t.Logger.Info("agent call finished", "component", "stream", "agent", agent, "stage", stage, "status", reply.Status)

		switch reconcile.Status(reply.Status) {
		case reconcile.StatusComplete:
			h(Event{Kind: KindUpdate, Update: reconcile.Update{
				Agent:     agent,
				Stage:     reconcile.Int(stage),
				Iteration: reconcile.Int(iteration),
				Status:    reconcile.StatusComplete,
				Message:   reply.Message,
				Response:  response,
			}})
			prior[agent] = response

		case reconcile.StatusStopped:
			h(Event{Kind: KindStopped, Update: reconcile.Update{
				Agent:   reconcile.SystemAgent,
				Status:  reconcile.StatusStopped,
				Message: reply.Message,
			}})
			res.Stopped = true
			return res, nil

		default:
			msg := reply.Message
			if msg == "" {
				msg = fmt.Sprintf("agent reported status %q", reply.Status)
			}
			h(Event{Kind: KindUpdate, Update: reconcile.Update{
				Agent:     agent,
				Stage:     reconcile.Int(stage),
				Iteration: reconcile.Int(iteration),
				Status:    reconcile.StatusError,
				Message:   msg,
				Response:  response,
			}})
			res.FailedAgent = agent
			return res, nil
		}
	}

	h(Event{Kind: KindBookkeeping, Done: true, Update: reconcile.Update{Agent: reconcile.SystemAgent, Done: true}})
	res.Done = true
	return res, nil
}
