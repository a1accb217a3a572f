// ABOUTME: Tests for the session controller: run outcomes, stop handling, the stop overlay and snapshot fan-out.
// ABOUTME: Uses scripted in-memory transports so every lifecycle path is deterministic.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/2389-research/mop/reconcile"
	"github.com/2389-research/mop/stream"
)

// scriptTransport delivers a fixed list of events, then optionally waits for
// cancellation before returning.
type scriptTransport struct {
	events  []stream.Event
	res     stream.Result
	err     error
	block   bool
	started chan struct{}
}

func (t *scriptTransport) Run(ctx context.Context, problem string, h stream.Handler) (stream.Result, error) {
	for _, ev := range t.events {
		h(ev)
		if ev.Kind == stream.KindStopped {
			return stream.Result{Stopped: true}, nil
		}
	}
	if t.started != nil {
		close(t.started)
	}
	if t.block {
		<-ctx.Done()
		return t.res, ctx.Err()
	}
	return t.res, t.err
}

type fakeKernel struct {
	err    error
	called int
}

func (k *fakeKernel) Stop(context.Context) error  { k.called++; return k.err }
func (k *fakeKernel) Reset(context.Context) error { k.called++; return k.err }

func update(agent string, status reconcile.Status) stream.Event {
	return stream.Event{Kind: stream.KindUpdate, Update: reconcile.Update{Agent: agent, Status: status}}
}

func newSession(opts ...Option) *Session {
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return New(opts...)
}

// startRun starts a run whose transport blocks until cancelled. The run is
// cancelled and drained when the test ends.
func startRun(t *testing.T, s *Session, problem string) string {
	t.Helper()
	tr := &scriptTransport{block: true, started: make(chan struct{})}
	id, done, err := s.Go(context.Background(), tr, problem)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	<-tr.started
	t.Cleanup(func() {
		_ = s.Cancel()
		<-done
	})
	return id
}

func TestGoSeedsAnalysis(t *testing.T) {
	s := newSession()
	id := startRun(t, s, "problem")
	snap := s.Snapshot()
	if snap.RunID != id || !snap.Active || snap.Problem != "problem" {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	seed, ok := snap.State.Get(reconcile.Key{Agent: "analysis", Stage: 1, Staged: true})
	if !ok || seed.Status != reconcile.StatusThinking || seed.Message != "Starting analysis..." {
		t.Errorf("expected analysis seed, got %+v", seed)
	}
	if _, _, err := s.Go(context.Background(), &scriptTransport{}, "again"); !errors.Is(err, ErrRunActive) {
		t.Errorf("expected ErrRunActive, got %v", err)
	}
}

func TestRunCompleted(t *testing.T) {
	s := newSession()
	tr := &scriptTransport{
		events: []stream.Event{
			update("analysis", reconcile.StatusThinking),
			{Kind: stream.KindUpdate, Update: reconcile.Update{Agent: "analysis", Stage: reconcile.Int(1), Status: reconcile.StatusComplete, Response: "Hello"}},
			{Kind: stream.KindBookkeeping, Done: true, Update: reconcile.Update{Done: true}},
		},
		res: stream.Result{Done: true},
	}

	snap, err := s.Run(context.Background(), tr, "p")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if snap.Outcome != OutcomeCompleted || snap.Active {
		t.Errorf("expected completed inactive run, got %s active=%v", snap.Outcome, snap.Active)
	}
	got, _ := snap.State.Get(reconcile.Key{Agent: "analysis", Stage: 1, Staged: true})
	if got.Status != reconcile.StatusComplete || got.Response != "Hello" {
		t.Errorf("unexpected analysis slot %+v", got)
	}
	if snap.FinishedAt.IsZero() {
		t.Error("expected finish time")
	}
}

func TestRunSystemStopClearsState(t *testing.T) {
	s := newSession(WithSeed(nil))
	tr := &scriptTransport{events: []stream.Event{
		update("analysis", reconcile.StatusThinking),
		update("research", reconcile.StatusThinking),
		{Kind: stream.KindStopped, Update: reconcile.Update{Agent: reconcile.SystemAgent, Status: reconcile.StatusStopped}},
		update("critic", reconcile.StatusThinking),
	}}

	snap, err := s.Run(context.Background(), tr, "p")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !snap.State.IsEmpty() {
		t.Errorf("expected cleared state, got %+v", snap.State.Updates())
	}
	if snap.Active {
		t.Error("expected run inactive")
	}
	if snap.Outcome != OutcomeHalted {
		t.Errorf("expected halted, got %s", snap.Outcome)
	}
}

func TestRunEndedWithoutDone(t *testing.T) {
	s := newSession()
	snap, err := s.Run(context.Background(), &scriptTransport{events: []stream.Event{update("analysis", reconcile.StatusThinking)}}, "p")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if snap.Outcome != OutcomeEnded || snap.Active {
		t.Errorf("expected ended, got %s active=%v", snap.Outcome, snap.Active)
	}
	if snap.State.IsEmpty() {
		t.Error("ended runs keep their state")
	}
}

func TestRunTransportFailureClearsState(t *testing.T) {
	s := newSession()
	boom := errors.New("connection refused")
	snap, err := s.Run(context.Background(), &scriptTransport{
		events: []stream.Event{update("analysis", reconcile.StatusThinking)},
		err:    boom,
	}, "p")
	if !errors.Is(err, boom) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if snap.Outcome != OutcomeFailed || snap.Err == "" {
		t.Errorf("expected failed with error, got %s %q", snap.Outcome, snap.Err)
	}
	if !snap.State.IsEmpty() {
		t.Error("expected state cleared so a retry starts clean")
	}

	// A retry is possible right away.
	startRun(t, s, "retry")
}

func TestRunAgentFailureKeepsState(t *testing.T) {
	s := newSession()
	snap, err := s.Run(context.Background(), &scriptTransport{
		events: []stream.Event{update("analysis", reconcile.StatusError)},
		res:    stream.Result{FailedAgent: "analysis"},
	}, "p")
	if err != nil {
		t.Fatalf("agent failure is not a run error: %v", err)
	}
	if snap.Outcome != OutcomeFailed {
		t.Errorf("expected failed, got %s", snap.Outcome)
	}
	if got, _ := snap.State.Lookup(reconcile.Key{Agent: "analysis"}); got.Status != reconcile.StatusError {
		t.Errorf("expected error slot retained, got %+v", got)
	}
}

func TestRunCancelledByCaller(t *testing.T) {
	s := newSession()
	ctx, cancel := context.WithCancel(context.Background())
	tr := &scriptTransport{block: true, started: make(chan struct{})}

	done := make(chan Snapshot, 1)
	go func() {
		snap, _ := s.Run(ctx, tr, "p")
		done <- snap
	}()
	<-tr.started
	cancel()

	select {
	case snap := <-done:
		if snap.Outcome != OutcomeCancelled {
			t.Errorf("expected cancelled, got %s", snap.Outcome)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return")
	}
}

func TestKernelStopHaltsActiveRun(t *testing.T) {
	s := newSession()
	tr := &scriptTransport{
		events:  []stream.Event{update("research", reconcile.StatusThinking)},
		block:   true,
		started: make(chan struct{}),
	}

	done := make(chan Snapshot, 1)
	go func() {
		snap, _ := s.Run(context.Background(), tr, "p")
		done <- snap
	}()
	<-tr.started

	k := &fakeKernel{}
	if err := s.Stop(context.Background(), k); err != nil {
		t.Fatalf("stop: %v", err)
	}

	select {
	case snap := <-done:
		if snap.Outcome != OutcomeHalted {
			t.Errorf("expected halted, got %s", snap.Outcome)
		}
		if !snap.State.IsEmpty() {
			t.Error("expected cleared state")
		}
		if !snap.KernelStopped || snap.Stopping {
			t.Errorf("expected confirmed stop overlay, got stopping=%v stopped=%v", snap.Stopping, snap.KernelStopped)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}

	if err := s.Reset(context.Background(), k); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if s.Snapshot().KernelStopped {
		t.Error("expected reset to clear the stop flag")
	}
}

func TestKernelStopFailureClearsStopping(t *testing.T) {
	s := newSession()
	startRun(t, s, "p")
	err := s.Stop(context.Background(), &fakeKernel{err: errors.New("503")})
	if err == nil {
		t.Fatal("expected stop error")
	}
	snap := s.Snapshot()
	if snap.Stopping || snap.KernelStopped {
		t.Errorf("expected overlay cleared, got stopping=%v stopped=%v", snap.Stopping, snap.KernelStopped)
	}
	if !snap.Active {
		t.Error("a failed stop leaves the run running")
	}
}

func TestEventsAfterHaltAreDropped(t *testing.T) {
	s := newSession(WithSeed(nil))
	id := startRun(t, s, "p")
	h := s.handler(id)

	h(stream.Event{Kind: stream.KindStopped, Update: reconcile.Update{Agent: reconcile.SystemAgent, Status: reconcile.StatusStopped}})
	h(update("critic", reconcile.StatusThinking))

	if !s.Snapshot().State.IsEmpty() {
		t.Error("late events must not repopulate a halted run")
	}
}

func TestSubscribeCoalesces(t *testing.T) {
	s := newSession()
	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()

	first := <-ch
	if first.Active {
		t.Error("initial snapshot should be idle")
	}

	id := startRun(t, s, "p")
	h := s.handler(id)
	for i := 0; i < 10; i++ {
		h(update("analysis", reconcile.StatusThinking))
		h(update("research", reconcile.StatusThinking))
	}

	latest := <-ch
	if latest.Seq != s.Snapshot().Seq {
		t.Errorf("expected only the latest snapshot, got seq %d want %d", latest.Seq, s.Snapshot().Seq)
	}
	select {
	case extra := <-ch:
		t.Errorf("expected no backlog, got seq %d", extra.Seq)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	s := newSession()
	ch, unsubscribe := s.Subscribe()
	<-ch
	unsubscribe()
	unsubscribe()
	if _, ok := <-ch; ok {
		t.Error("expected closed channel")
	}
}

func TestLogBoundedWithULIDs(t *testing.T) {
	s := newSession(WithMaxLog(5))
	id := startRun(t, s, "p")
	h := s.handler(id)
	for i := 0; i < 20; i++ {
		h(update("analysis", reconcile.StatusThinking))
	}

	log := s.Snapshot().Log
	if len(log) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(log))
	}
	seen := map[string]bool{}
	for _, e := range log {
		if len(e.ID) != 26 {
			t.Errorf("expected a 26-char ULID, got %q", e.ID)
		}
		if seen[e.ID] {
			t.Errorf("duplicate entry ID %s", e.ID)
		}
		seen[e.ID] = true
	}
}

func TestCancelWithoutRun(t *testing.T) {
	if err := newSession().Cancel(); !errors.Is(err, ErrNoRun) {
		t.Errorf("expected ErrNoRun, got %v", err)
	}
}

func TestSnapshotElapsed(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{StartedAt: start}
	if got := snap.Elapsed(start.Add(3 * time.Second)); got != 3*time.Second {
		t.Errorf("expected 3s, got %v", got)
	}
	snap.FinishedAt = start.Add(time.Second)
	if got := snap.Elapsed(start.Add(time.Hour)); got != time.Second {
		t.Errorf("expected 1s once finished, got %v", got)
	}
}

func TestGoRejectsSecondRun(t *testing.T) {
	s := newSession()
	tr := &scriptTransport{block: true, started: make(chan struct{})}
	id, done, err := s.Go(context.Background(), tr, "p")
	if err != nil || id == "" {
		t.Fatalf("unexpected start error %v", err)
	}
	<-tr.started

	if _, _, err := s.Go(context.Background(), &scriptTransport{}, "q"); !errors.Is(err, ErrRunActive) {
		t.Errorf("expected ErrRunActive, got %v", err)
	}

	if err := s.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	res := <-done
	if res.Snapshot.Outcome != OutcomeCancelled {
		t.Errorf("expected cancelled, got %s", res.Snapshot.Outcome)
	}
	if _, ok := <-done; ok {
		t.Error("expected the result channel closed")
	}
}

func TestCancelledRunFreesSession(t *testing.T) {
	s := newSession()
	tr := &scriptTransport{block: true, started: make(chan struct{})}
	_, done, err := s.Go(context.Background(), tr, "p")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	<-tr.started

	if err := s.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	<-done
	if s.Snapshot().Active {
		t.Fatal("expected no active run after cancel")
	}
	if err := s.Cancel(); !errors.Is(err, ErrNoRun) {
		t.Errorf("expected ErrNoRun once idle, got %v", err)
	}
	startRun(t, s, "again")
}

func TestNewRunClearsStopOverlay(t *testing.T) {
	s := newSession()
	startRun(t, s, "p")
	if err := s.Stop(context.Background(), &fakeKernel{}); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !s.Snapshot().KernelStopped {
		t.Fatal("expected the stop overlay after a kernel stop")
	}

	startRun(t, s, "fresh")
	snap := s.Snapshot()
	if snap.KernelStopped || snap.Stopping {
		t.Errorf("expected a fresh run to clear the overlay, got stopped=%v stopping=%v", snap.KernelStopped, snap.Stopping)
	}
	if !snap.Active || snap.Problem != "fresh" {
		t.Errorf("expected the new run active, got %+v", snap)
	}
}
