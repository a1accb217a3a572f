// ABOUTME: Immutable snapshot of a session and the bounded ingestion log carried with it.
// ABOUTME: Snapshots are what every presentation layer reads; they are never modified after publication.
package session

import (
	"slices"
	"time"

	"github.com/2389-research/mop/reconcile"
	"github.com/2389-research/mop/stream"
)

// Snapshot is a point-in-time view of the session.
type Snapshot struct {
	Seq     uint64
	RunID   string
	Problem string
	State   reconcile.State
	Active  bool
	Outcome Outcome
	Err     string

	// Stopping is set while a stop command is in flight; KernelStopped once
	// the server confirmed it and until a reset.
	Stopping      bool
	KernelStopped bool

	StartedAt  time.Time
	FinishedAt time.Time
	Stats      stream.Stats
	Log        []LogEntry
}

func (s Snapshot) clone() Snapshot {
	s.Log = slices.Clone(s.Log)
	return s
}

// Elapsed returns the run duration so far, or its total once finished.
func (s Snapshot) Elapsed(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	if !s.FinishedAt.IsZero() {
		return s.FinishedAt.Sub(s.StartedAt)
	}
	return now.Sub(s.StartedAt)
}

// Entry kinds.
const (
	EntryUpdate      = "update"
	EntryBookkeeping = "bookkeeping"
	EntryStopped     = "stopped"
	EntryRun         = "run"
	EntryKernel      = "kernel"
)

// LogEntry records one ingested event or lifecycle change.
type LogEntry struct {
	ID      string    `json:"id"`
	Time    time.Time `json:"time"`
	Kind    string    `json:"kind"`
	Agent   string    `json:"agent,omitempty"`
	Status  string    `json:"status,omitempty"`
	Message string    `json:"message,omitempty"`
}

func entryFor(ev stream.Event) LogEntry {
	e := LogEntry{
		Agent:   ev.Update.Agent,
		Status:  string(ev.Update.Status),
		Message: ev.Update.Message,
	}
	switch ev.Kind {
	case stream.KindStopped:
		e.Kind = EntryStopped
	case stream.KindBookkeeping:
		e.Kind = EntryBookkeeping
		if ev.Done {
			e.Status = "done"
		}
	default:
		e.Kind = EntryUpdate
		if e.Message == "" && ev.Update.Response != "" {
			e.Message = "response received"
		}
	}
	return e
}
