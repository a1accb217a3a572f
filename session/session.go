// ABOUTME: Session controller that owns the reconciled state of the current analysis run.
// ABOUTME: Single writer for merges, run lifecycle and outcome, the stop overlay, and snapshot fan-out to readers.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/2389-research/mop/client"
	"github.com/2389-research/mop/reconcile"
	"github.com/2389-research/mop/stream"
)

var (
	// ErrRunActive is returned when a run is started while another is active.
	ErrRunActive = errors.New("an analysis run is already active")
	// ErrNoRun is returned by operations that need an active run.
	ErrNoRun = errors.New("no active analysis run")
)

// Outcome is how a run ended. The zero value means the run is still going
// or none has started.
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeCompleted Outcome = "completed" // done signal received
	OutcomeEnded     Outcome = "ended"     // stream ended without done
	OutcomeHalted    Outcome = "halted"    // stopped by system event or kernel stop
	OutcomeFailed    Outcome = "failed"    // transport error or agent failure
	OutcomeCancelled Outcome = "cancelled" // caller cancelled
)

// DefaultMaxLog bounds the ingestion log kept in snapshots.
const DefaultMaxLog = 200

// Stopper issues the administrative stop command.
type Stopper interface {
	Stop(ctx context.Context) error
}

// Resetter clears the administrative stop.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Session is the sole writer of reconciled state. All methods are safe for
// concurrent use; readers get immutable Snapshots.
type Session struct {
	mu     sync.Mutex
	snap   Snapshot
	cancel context.CancelFunc

	subs    map[int]chan Snapshot
	nextSub int
	closed  bool

	seed   *reconcile.Update
	maxLog int
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithSeed sets the optimistic update merged when a run starts. A nil seed
// starts runs from an empty state.
func WithSeed(u *reconcile.Update) Option {
	return func(s *Session) {
		s.seed = u
	}
}

// WithMaxLog bounds the ingestion log.
func WithMaxLog(n int) Option {
	return func(s *Session) {
		s.maxLog = n
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// DefaultSeed is the first agent shown as working before the server answers.
func DefaultSeed() *reconcile.Update {
	return &reconcile.Update{
		Agent:     "analysis",
		Stage:     reconcile.Int(1),
		Iteration: reconcile.Int(1),
		Status:    reconcile.StatusThinking,
		Message:   "Starting analysis...",
	}
}

// New creates an idle session.
func New(opts ...Option) *Session {
	s := &Session{
		subs:   make(map[int]chan Snapshot),
		seed:   DefaultSeed(),
		maxLog: DefaultMaxLog,
		logger: slog.Default(),
		now:    time.Now,
		newID:  NewRunID,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "session")
	return s
}

// Snapshot returns the current view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.clone()
}

// Subscribe returns a channel receiving the latest snapshot after every
// change, and a function that cancels the subscription. Slow readers only
// ever see the most recent snapshot; publishing never blocks.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.snap.clone()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Close ends every subscription. A running run is cancelled.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.closed = true
}

// start begins a new run of problem: fresh run ID, state reset to the seed,
// active flag set and stop overlay cleared. cancel stops the run's transport.
func (s *Session) start(problem string, cancel context.CancelFunc) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap.Active {
		return "", ErrRunActive
	}

	id := s.newID()
	state := reconcile.Empty()
	if s.seed != nil {
		state = reconcile.Merge(state, *s.seed)
	}
	s.cancel = cancel
	s.snap = Snapshot{
		Seq:       s.snap.Seq,
		RunID:     id,
		Problem:   problem,
		State:     state,
		Active:    true,
		StartedAt: s.now(),
		Log:       s.snap.Log,
	}
	s.appendLogLocked(LogEntry{Kind: EntryRun, Status: "started", Message: problem})
	s.publishLocked()

	s.logger.Info("run started", "run_id", id)
	return id, nil
}

// Result is the outcome of a run started with Go.
type Result struct {
	Snapshot Snapshot
	Err      error
}

// Run starts a run and drives transport t until it finishes. The returned
// snapshot is the final view of the run. The error is non-nil when the run
// could not start or the transport failed.
func (s *Session) Run(ctx context.Context, t stream.Transport, problem string) (Snapshot, error) {
	_, done, err := s.Go(ctx, t, problem)
	if err != nil {
		return s.Snapshot(), err
	}
	res := <-done
	return res.Snapshot, res.Err
}

// Go starts a run like Run but drives the transport on its own goroutine.
// Start errors are returned synchronously. The channel receives exactly one
// Result and is then closed.
func (s *Session) Go(ctx context.Context, t stream.Transport, problem string) (string, <-chan Result, error) {
	runCtx, cancel := context.WithCancel(ctx)
	id, err := s.start(problem, cancel)
	if err != nil {
		cancel()
		return "", nil, err
	}

	done := make(chan Result, 1)
	go func() {
		defer close(done)
		defer cancel()
		res, err := t.Run(client.WithRunID(runCtx, id), problem, s.handler(id))
		snap, err := s.finish(ctx, id, res, err)
		done <- Result{Snapshot: snap, Err: err}
	}()
	return id, done, nil
}

// handler returns the event sink for run id. Events arriving after the run
// was halted or replaced are dropped.
func (s *Session) handler(id string) stream.Handler {
	return func(ev stream.Event) {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.snap.RunID != id || !s.snap.Active {
			return
		}

		switch ev.Kind {
		case stream.KindUpdate:
			s.snap.State = reconcile.Merge(s.snap.State, ev.Update)
			s.appendLogLocked(entryFor(ev))
			s.publishLocked()

		case stream.KindStopped:
			s.appendLogLocked(entryFor(ev))
			s.haltLocked("stopped by server")

		case stream.KindBookkeeping:
			s.appendLogLocked(entryFor(ev))
			s.publishLocked()
		}
	}
}

func (s *Session) finish(ctx context.Context, id string, res stream.Result, err error) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap.RunID != id {
		return s.snap.clone(), err
	}
	s.cancel = nil
	s.snap.Stats = res.Stats

	// Already halted by a stop event or a kernel stop.
	if !s.snap.Active {
		s.publishLocked()
		return s.snap.clone(), nil
	}

	var outcome Outcome
	var runErr error
	switch {
	case err != nil && (ctx.Err() != nil || errors.Is(err, context.Canceled)):
		outcome = OutcomeCancelled
	case err != nil:
		outcome = OutcomeFailed
		runErr = err
		s.snap.Err = err.Error()
		s.snap.State = reconcile.Empty()
	case res.Stopped:
		outcome = OutcomeHalted
		s.snap.State = reconcile.Empty()
	case res.FailedAgent != "":
		outcome = OutcomeFailed
		s.snap.Err = fmt.Sprintf("agent %s reported a failure", res.FailedAgent)
	case res.Done:
		outcome = OutcomeCompleted
	default:
		outcome = OutcomeEnded
	}

	s.endLocked(outcome)
	s.logger.Info("run finished", "run_id", id, "outcome", outcome,
		"accepted", res.Stats.Accepted, "malformed", res.Stats.Malformed, "error", s.snap.Err)
	return s.snap.clone(), runErr
}

// Stop issues the administrative stop through k. The stopping overlay is
// shown while the call is in flight. A confirmed stop halts the current run:
// the reader is cancelled and the state cleared.
func (s *Session) Stop(ctx context.Context, k Stopper) error {
	s.mu.Lock()
	s.snap.Stopping = true
	s.appendLogLocked(LogEntry{Kind: EntryKernel, Status: "stopping"})
	s.publishLocked()
	s.mu.Unlock()

	err := k.Stop(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.snap.Stopping = false
		s.appendLogLocked(LogEntry{Kind: EntryKernel, Status: "stop failed", Message: err.Error()})
		s.publishLocked()
		return err
	}

	s.snap.KernelStopped = true
	s.appendLogLocked(LogEntry{Kind: EntryKernel, Status: "stopped"})
	if s.snap.Active {
		s.haltLocked("stopped by kernel command")
	} else {
		s.snap.Stopping = false
		s.publishLocked()
	}
	return nil
}

// Reset clears the administrative stop through r.
func (s *Session) Reset(ctx context.Context, r Resetter) error {
	if err := r.Reset(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.KernelStopped = false
	s.appendLogLocked(LogEntry{Kind: EntryKernel, Status: "reset"})
	s.publishLocked()
	return nil
}

// Cancel aborts the active run without a kernel command.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.snap.Active || s.cancel == nil {
		return ErrNoRun
	}
	s.cancel()
	return nil
}

// haltLocked ends the active run as halted: the reader is cancelled and the
// state replaced by an empty one.
func (s *Session) haltLocked(reason string) {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.snap.State = reconcile.Empty()
	s.snap.Err = reason
	s.endLocked(OutcomeHalted)
	s.logger.Info("run halted", "run_id", s.snap.RunID, "reason", reason)
}

func (s *Session) endLocked(outcome Outcome) {
	s.snap.Active = false
	s.snap.Stopping = false
	s.snap.Outcome = outcome
	s.snap.FinishedAt = s.now()
	s.appendLogLocked(LogEntry{Kind: EntryRun, Status: string(outcome), Message: s.snap.Err})
	s.publishLocked()
}

func (s *Session) appendLogLocked(e LogEntry) {
	e.ID = newEntryID()
	e.Time = s.now()
	log := append(slices.Clone(s.snap.Log), e)
	if s.maxLog > 0 && len(log) > s.maxLog {
		log = log[len(log)-s.maxLog:]
	}
	s.snap.Log = log
}

func (s *Session) publishLocked() {
	s.snap.Seq++
	snap := s.snap.clone()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// Replace the unread snapshot with the newer one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
