// ABOUTME: Streaming transport: one POST to the analyze endpoint whose body is a long-lived event stream.
// ABOUTME: The response body is released on every exit path, including cancellation by a kernel stop.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/2389-research/mop/client"
)

// AnalyzePath is the streaming analysis endpoint.
const AnalyzePath = "/analyze"

type analyzeRequest struct {
	Problem string `json:"problem"`
}

// SSETransport streams every agent transition over a single response.
type SSETransport struct {
	Client *client.Client
	Path   string
	Logger *slog.Logger
}

// NewSSETransport creates a streaming transport against c.
func NewSSETransport(c *client.Client, logger *slog.Logger) *SSETransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &SSETransport{Client: c, Path: AnalyzePath, Logger: logger}
}

// Run posts the problem and consumes the event stream.
func (t *SSETransport) Run(ctx context.Context, problem string, h Handler) (Result, error) {
	resp, err := t.Client.Open(ctx, http.MethodPost, t.Path, analyzeRequest{Problem: problem})
	if err != nil {
		return Result{}, fmt.Errorf("start analysis: %w", err)
	}
	defer resp.Body.Close()

	t.Logger.Info("analysis stream opened", "component", "stream", "path", t.Path, "run_id", client.RunID(ctx))
	res, err := Consume(ctx, resp.Body, h, t.Logger)
	t.Logger.Info("analysis stream closed", "component", "stream",
		"done", res.Done, "stopped", res.Stopped,
		"accepted", res.Stats.Accepted, "ignored", res.Stats.Ignored, "malformed", res.Stats.Malformed)
	return res, err
}
