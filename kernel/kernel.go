// ABOUTME: Kernel control channel: administrative stop, reset, stop-history query and history export.
// ABOUTME: Plain request/response calls against the analysis server, independent of the update stream.
package kernel

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/2389-research/mop/client"
)

// Endpoint paths.
const (
	StopPath    = "/kernel/stop"
	ResetPath   = "/kernel/reset"
	HistoryPath = "/kernel/history"
	ExportPath  = "/kernel/history/export"
)

// Actions recorded in the history.
const (
	ActionStop  = "stop"
	ActionReset = "reset"
)

// Event is one entry of the stop history.
type Event struct {
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
	Status    string `json:"status"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// Time parses the timestamp. Timestamps without a zone are taken as local time.
func (e Event) Time() (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, e.Timestamp, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// When returns the timestamp formatted for display in local time, or the raw
// value when it cannot be parsed.
func (e Event) When() string {
	t, ok := e.Time()
	if !ok {
		return e.Timestamp
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// Label names the action for display.
func (e Event) Label() string {
	switch e.Action {
	case ActionStop:
		return "Stop"
	case ActionReset:
		return "Reset"
	default:
		return e.Action
	}
}

// ExportFileName is the default name for a history export taken on day t.
func ExportFileName(t time.Time) string {
	return fmt.Sprintf("kernel_stop_history_%s.xlsx", t.Format("2006-01-02"))
}

// Channel issues kernel commands.
type Channel struct {
	client *client.Client
	logger *slog.Logger
}

// New creates a channel over c.
func New(c *client.Client, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{client: c, logger: logger.With("component", "kernel")}
}

// Stop asks the server to halt the running analysis.
func (ch *Channel) Stop(ctx context.Context) error {
	if err := ch.client.JSON(ctx, http.MethodPost, StopPath, nil, nil); err != nil {
		return fmt.Errorf("kernel stop: %w", err)
	}
	ch.logger.Info("stop confirmed")
	return nil
}

// Reset clears the server's stop flag so analyses may run again.
func (ch *Channel) Reset(ctx context.Context) error {
	if err := ch.client.JSON(ctx, http.MethodPost, ResetPath, nil, nil); err != nil {
		return fmt.Errorf("kernel reset: %w", err)
	}
	ch.logger.Info("reset confirmed")
	return nil
}

// History returns the stop history, newest first.
func (ch *Channel) History(ctx context.Context) ([]Event, error) {
	var reply struct {
		History []Event `json:"history"`
	}
	if err := ch.client.GetJSON(ctx, HistoryPath, &reply); err != nil {
		return nil, fmt.Errorf("kernel history: %w", err)
	}
	events := make([]Event, len(reply.History))
	for i, e := range reply.History {
		events[len(events)-1-i] = e
	}
	return events, nil
}

// Export downloads the binary history export.
func (ch *Channel) Export(ctx context.Context) ([]byte, error) {
	data, _, err := ch.client.GetBytes(ctx, ExportPath)
	if err != nil {
		return nil, fmt.Errorf("kernel history export: %w", err)
	}
	return data, nil
}

// SaveExport downloads the export and writes it to path. An empty path, or
// a path naming a directory, uses ExportFileName for today. It returns the
// path written.
func (ch *Channel) SaveExport(ctx context.Context, path string, now time.Time) (string, error) {
	if path == "" {
		path = ExportFileName(now)
	} else if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, ExportFileName(now))
	}

	data, err := ch.Export(ctx)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing export: %w", err)
	}
	ch.logger.Info("history exported", "path", path, "bytes", len(data))
	return path, nil
}
