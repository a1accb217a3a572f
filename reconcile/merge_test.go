// ABOUTME: Tests for the update reconciler merge rules and the immutable state value.
// ABOUTME: Covers monotonic completion, response retention, idempotence and slot identity matching.
package reconcile

import (
	"math/rand"
	"testing"
)

func mustGet(t *testing.T, s State, key Key) Update {
	t.Helper()
	u, ok := s.Get(key)
	if !ok {
		t.Fatalf("expected slot %s to exist", key)
	}
	return u
}

func TestMergeThinkingThenComplete(t *testing.T) {
	s := MergeAll(Empty(),
		Update{Agent: "analysis", Status: StatusThinking},
		Update{Agent: "analysis", Status: StatusComplete, Response: "Hello"},
	)

	got := mustGet(t, s, Key{Agent: "analysis"})
	if got.Status != StatusComplete {
		t.Errorf("expected status complete, got %q", got.Status)
	}
	if got.Response != "Hello" {
		t.Errorf("expected response %q, got %q", "Hello", got.Response)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 slot, got %d", s.Len())
	}
}

func TestMergeStaleThinkingAfterComplete(t *testing.T) {
	s := MergeAll(Empty(),
		Update{Agent: "research", Status: StatusComplete, Response: "X"},
		Update{Agent: "research", Status: StatusThinking, Message: "late echo"},
	)

	got := mustGet(t, s, Key{Agent: "research"})
	if got.Status != StatusComplete || got.Response != "X" {
		t.Errorf("expected complete/X, got %q/%q", got.Status, got.Response)
	}
	if got.Message != "" {
		t.Errorf("expected stale message to be ignored, got %q", got.Message)
	}
}

func TestMergeLateResponseFillsEmptyComplete(t *testing.T) {
	s := MergeAll(Empty(),
		Update{Agent: "critic", Status: StatusComplete},
		Update{Agent: "critic", Status: StatusComplete, Response: "Y"},
	)

	got := mustGet(t, s, Key{Agent: "critic"})
	if got.Response != "Y" {
		t.Errorf("expected response %q, got %q", "Y", got.Response)
	}
}

func TestMergeFirstCompleteResponseWins(t *testing.T) {
	s := MergeAll(Empty(),
		Update{Agent: "critic", Status: StatusComplete, Response: "first"},
		Update{Agent: "critic", Status: StatusComplete, Response: "second"},
	)
	if got := mustGet(t, s, Key{Agent: "critic"}); got.Response != "first" {
		t.Errorf("expected first response to win, got %q", got.Response)
	}
}

func TestMergeCompleteKeepsEarlierResponse(t *testing.T) {
	s := MergeAll(Empty(),
		Update{Agent: "monitor", Status: StatusThinking, Response: "draft"},
		Update{Agent: "monitor", Status: StatusComplete},
	)
	got := mustGet(t, s, Key{Agent: "monitor"})
	if got.Status != StatusComplete {
		t.Errorf("expected complete, got %q", got.Status)
	}
	if got.Response != "draft" {
		t.Errorf("expected earlier response to be kept, got %q", got.Response)
	}
}

func TestMergeErrorIsAdopted(t *testing.T) {
	s := MergeAll(Empty(),
		Update{Agent: "ratings", Status: StatusThinking, Response: "partial"},
		Update{Agent: "ratings", Status: StatusError, Message: "upstream failed"},
	)
	got := mustGet(t, s, Key{Agent: "ratings"})
	if got.Status != StatusError {
		t.Errorf("expected error status, got %q", got.Status)
	}
	if got.Response != "partial" {
		t.Errorf("expected response kept, got %q", got.Response)
	}
	if got.Message != "upstream failed" {
		t.Errorf("expected message from error update, got %q", got.Message)
	}
}

func TestMergeStaleThinkingAfterErrorIsNoop(t *testing.T) {
	s := MergeAll(Empty(),
		Update{Agent: "critic", Status: StatusThinking},
		Update{Agent: "critic", Status: StatusError, Message: "model timeout"},
	)
	after := Merge(s, Update{Agent: "critic", Status: StatusThinking, Message: "Evaluating..."})

	got := mustGet(t, after, Key{Agent: "critic"})
	if got.Status != StatusError || got.Message != "model timeout" {
		t.Errorf("expected the error to hold, got %+v", got)
	}

	// A later completion still wins over the error.
	done := Merge(after, Update{Agent: "critic", Status: StatusComplete, Response: "recovered"})
	if got := mustGet(t, done, Key{Agent: "critic"}); got.Status != StatusComplete || got.Response != "recovered" {
		t.Errorf("expected complete to replace the error, got %+v", got)
	}
}

func TestMergeErrorDoesNotDowngradeComplete(t *testing.T) {
	s := MergeAll(Empty(),
		Update{Agent: "ratings", Status: StatusComplete, Response: "ok"},
		Update{Agent: "ratings", Status: StatusError},
	)
	if got := mustGet(t, s, Key{Agent: "ratings"}); got.Status != StatusComplete {
		t.Errorf("expected complete to hold, got %q", got.Status)
	}
}

func TestMergeUnknownStatusOnExistingSlotIsNoop(t *testing.T) {
	before := Merge(Empty(), Update{Agent: "analysis", Status: StatusThinking, Message: "working"})
	after := Merge(before, Update{Agent: "analysis", Status: StatusPending})

	if !after.Equal(before) {
		t.Errorf("expected pending echo to be ignored, got %+v", after.Updates())
	}
}

func TestMergeUnknownStatusOnNewSlotIsStored(t *testing.T) {
	s := Merge(Empty(), Update{Agent: "oracle", Status: "pondering"})
	got := mustGet(t, s, Key{Agent: "oracle"})
	if got.Status != "pondering" {
		t.Errorf("expected unknown status stored verbatim, got %q", got.Status)
	}
}

func TestMergeStageIdentity(t *testing.T) {
	s := MergeAll(Empty(),
		Update{Agent: "analysis", Stage: Int(1), Status: StatusComplete, Response: "round one"},
		Update{Agent: "analysis", Stage: Int(4), Status: StatusThinking},
	)
	if s.Len() != 2 {
		t.Fatalf("expected distinct stages to create 2 slots, got %d", s.Len())
	}

	// A stage-less update joins the most recently written slot of the agent
	// and that slot keeps its stage.
	s = Merge(s, Update{Agent: "analysis", Status: StatusComplete, Response: "round two"})
	if s.Len() != 2 {
		t.Fatalf("expected stage-less update to merge, got %d slots", s.Len())
	}
	if got := mustGet(t, s, Key{Agent: "analysis", Stage: 4, Staged: true}); got.Response != "round two" {
		t.Errorf("expected stage 4 slot to adopt the update, got %+v", got)
	}
	if got := mustGet(t, s, Key{Agent: "analysis", Stage: 1, Staged: true}); got.Response != "round one" {
		t.Errorf("expected stage 1 untouched, got %q", got.Response)
	}
}

func TestMergeStagedUpdateMatchesStagelessSlot(t *testing.T) {
	s := MergeAll(Empty(),
		Update{Agent: "critic", Status: StatusThinking},
		Update{Agent: "critic", Stage: Int(3), Status: StatusComplete, Response: "done"},
	)
	if s.Len() != 1 {
		t.Fatalf("expected 1 slot, got %d", s.Len())
	}
	got, ok := s.Lookup(Key{Agent: "critic", Stage: 3, Staged: true})
	if !ok || got.Response != "done" {
		t.Errorf("expected merged staged update, got %+v (ok=%v)", got, ok)
	}
}

func TestMergeExactStageWinsOverStageless(t *testing.T) {
	s := MergeAll(Empty(),
		Update{Agent: "monitor", Stage: Int(2), Status: StatusThinking},
		Update{Agent: "monitor", Stage: Int(5), Status: StatusThinking},
	)
	s = Merge(s, Update{Agent: "monitor", Stage: Int(2), Status: StatusComplete, Response: "two"})

	if got := mustGet(t, s, Key{Agent: "monitor", Stage: 2, Staged: true}); got.Status != StatusComplete {
		t.Errorf("expected stage 2 complete, got %q", got.Status)
	}
	if got := mustGet(t, s, Key{Agent: "monitor", Stage: 5, Staged: true}); got.Status != StatusThinking {
		t.Errorf("expected stage 5 untouched, got %q", got.Status)
	}
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	first := Merge(Empty(), Update{Agent: "analysis", Status: StatusThinking})
	second := Merge(first, Update{Agent: "analysis", Status: StatusComplete, Response: "r"})

	if got := mustGet(t, first, Key{Agent: "analysis"}); got.Status != StatusThinking {
		t.Errorf("expected earlier state to be unchanged, got %q", got.Status)
	}
	if got := mustGet(t, second, Key{Agent: "analysis"}); got.Status != StatusComplete {
		t.Errorf("expected new state complete, got %q", got.Status)
	}
}

func TestMergeIdempotent(t *testing.T) {
	updates := []Update{
		{Agent: "analysis", Status: StatusThinking, Message: "m"},
		{Agent: "analysis", Status: StatusComplete, Response: "r"},
		{Agent: "research", Stage: Int(2), Iteration: Int(1), Status: StatusThinking},
		{Agent: "critic", Status: StatusError},
		{Agent: "monitor", Status: "weird"},
	}

	s := Empty()
	for _, u := range updates {
		once := Merge(s, u)
		twice := Merge(once, u)
		if !twice.Equal(once) {
			t.Errorf("merging %+v twice changed state: %+v vs %+v", u, once.Updates(), twice.Updates())
		}
		s = once
	}
}

func randomUpdate(r *rand.Rand) Update {
	agents := []string{"analysis", "research"}
	statuses := []Status{StatusThinking, StatusComplete, StatusError, StatusPending, "other"}
	responses := []string{"", "", "alpha", "beta"}

	u := Update{
		Agent:    agents[r.Intn(len(agents))],
		Status:   statuses[r.Intn(len(statuses))],
		Response: responses[r.Intn(len(responses))],
	}
	if r.Intn(3) == 0 {
		u.Stage = Int(1 + r.Intn(2))
	}
	return u
}

func TestMergeMonotonicAndRetainsResponse(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for run := 0; run < 500; run++ {
		s := Empty()
		for step := 0; step < 20; step++ {
			before := s
			s = Merge(s, randomUpdate(r))

			afterSlots := s.Slots()
			if len(afterSlots) < before.Len() {
				t.Fatalf("run %d step %d: slots removed", run, step)
			}
			for i, slot := range before.Slots() {
				key := slot.Update.Key()
				after := afterSlots[i].Update
				if slot.Update.Status == StatusComplete && after.Status != StatusComplete {
					t.Fatalf("run %d step %d: slot %s regressed to %q", run, step, key, after.Status)
				}
				if slot.Update.Response != "" && after.Response == "" {
					t.Fatalf("run %d step %d: slot %s lost its response", run, step, key)
				}
			}
		}
	}
}

func TestKeyMatches(t *testing.T) {
	tests := []struct {
		name string
		a, b Key
		want bool
	}{
		{"same agent no stages", Key{Agent: "a"}, Key{Agent: "a"}, true},
		{"different agents", Key{Agent: "a"}, Key{Agent: "b"}, false},
		{"equal stages", Key{Agent: "a", Stage: 1, Staged: true}, Key{Agent: "a", Stage: 1, Staged: true}, true},
		{"different stages", Key{Agent: "a", Stage: 1, Staged: true}, Key{Agent: "a", Stage: 2, Staged: true}, false},
		{"one side stageless", Key{Agent: "a", Stage: 1, Staged: true}, Key{Agent: "a"}, true},
		{"stage zero is a stage", Key{Agent: "a", Stage: 0, Staged: true}, Key{Agent: "a", Stage: 1, Staged: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Matches(tt.b); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
			if got := tt.b.Matches(tt.a); got != tt.want {
				t.Errorf("reverse Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKeyString(t *testing.T) {
	if got := (Key{Agent: "critic"}).String(); got != "critic" {
		t.Errorf("expected %q, got %q", "critic", got)
	}
	if got := (Key{Agent: "critic", Stage: 3, Staged: true}).String(); got != "critic#3" {
		t.Errorf("expected %q, got %q", "critic#3", got)
	}
}
