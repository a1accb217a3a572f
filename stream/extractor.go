// ABOUTME: Event extractor that turns framed stream lines into classified update events.
// ABOUTME: Drops non-data lines and malformed payloads without interrupting the stream, and separates control events.
package stream

import (
	"log/slog"

	"github.com/2389-research/mop/reconcile"
	"github.com/2389-research/mop/sse"
)

// Kind classifies an extracted event.
type Kind int

const (
	// KindUpdate is an agent update destined for the reconciler.
	KindUpdate Kind = iota
	// KindBookkeeping is a control payload that is never rendered, such as
	// the system "starting" notice.
	KindBookkeeping
	// KindStopped is the system "stopped" signal: the run was halted.
	KindStopped
)

func (k Kind) String() string {
	switch k {
	case KindUpdate:
		return "update"
	case KindBookkeeping:
		return "bookkeeping"
	case KindStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Event is one accepted payload. Done mirrors the payload's done flag and
// means the whole run has finished.
type Event struct {
	Kind   Kind
	Update reconcile.Update
	Done   bool
}

// Stats counts how lines were handled.
type Stats struct {
	Accepted  int `json:"accepted"`
	Ignored   int `json:"ignored"`
	Malformed int `json:"malformed"`
}

const maxLoggedLine = 200

// Extractor classifies lines. It keeps counters and is not safe for
// concurrent use; each run owns one.
type Extractor struct {
	logger *slog.Logger
	stats  Stats
}

// NewExtractor creates an extractor logging dropped lines to logger.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger.With("component", "extractor")}
}

// Extract classifies one framed line. It returns false for lines that carry
// no event: comments, other SSE fields, blank lines and unparsable payloads.
func (e *Extractor) Extract(line string) (Event, bool) {
	payload, ok := sse.DataPayload(line)
	if !ok {
		e.stats.Ignored++
		return Event{}, false
	}

	u, err := reconcile.Decode([]byte(payload))
	if err != nil {
		e.stats.Malformed++
		e.logger.Warn("dropping malformed event", "line", truncate(line, maxLoggedLine), "error", err)
		return Event{}, false
	}
	e.stats.Accepted++

	ev := Event{Update: u, Done: u.Done}
	switch {
	case u.IsSystem() && u.Status == reconcile.StatusStopped:
		ev.Kind = KindStopped
	case u.IsSystem(), u.Agent == "":
		ev.Kind = KindBookkeeping
	default:
		ev.Kind = KindUpdate
	}
	return ev, true
}

// Stats returns the counters so far.
func (e *Extractor) Stats() Stats {
	return e.stats
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
