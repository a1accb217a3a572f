// ABOUTME: Immutable ReconciledState holding the latest known update per agent slot.
// ABOUTME: Every change produces a new State value so readers never observe a partially applied merge.
package reconcile

// Slot is one stored update together with the merge sequence number at
// which it was last written.
type Slot struct {
	Update Update
	Seq    uint64
}

// State maps identity keys to the single latest update for each slot. The
// zero value is the empty state. A State is never modified in place: Merge
// returns a new value and leaves the old one intact.
type State struct {
	slots []Slot
	seq   uint64
}

// Empty returns a fresh empty state.
func Empty() State {
	return State{}
}

// Len returns the number of stored slots.
func (s State) Len() int {
	return len(s.slots)
}

// IsEmpty reports whether no slot has been created.
func (s State) IsEmpty() bool {
	return len(s.slots) == 0
}

// Slots returns a copy of the stored slots in creation order.
func (s State) Slots() []Slot {
	out := make([]Slot, len(s.slots))
	copy(out, s.slots)
	return out
}

// Updates returns the stored updates in creation order.
func (s State) Updates() []Update {
	out := make([]Update, len(s.slots))
	for i, slot := range s.slots {
		out[i] = slot.Update
	}
	return out
}

// Get returns the stored update whose slot matches key exactly.
func (s State) Get(key Key) (Update, bool) {
	for _, slot := range s.slots {
		if slot.Update.Key() == key {
			return slot.Update, true
		}
	}
	return Update{}, false
}

// Lookup returns the stored update an incoming update with this key would be
// merged into, following the same identity rules as Merge.
func (s State) Lookup(key Key) (Update, bool) {
	idx := s.find(key)
	if idx < 0 {
		return Update{}, false
	}
	return s.slots[idx].Update, true
}

// ForAgent returns every slot belonging to agent, in creation order.
func (s State) ForAgent(agent string) []Slot {
	var out []Slot
	for _, slot := range s.slots {
		if slot.Update.Agent == agent {
			out = append(out, slot)
		}
	}
	return out
}

// Equal reports whether two states hold the same slots with the same values.
func (s State) Equal(other State) bool {
	if len(s.slots) != len(other.slots) {
		return false
	}
	for i := range s.slots {
		if !sameUpdate(s.slots[i].Update, other.slots[i].Update) {
			return false
		}
	}
	return true
}

// find returns the index of the slot key refers to, or -1. An exact key
// match wins; otherwise the most recently written slot of the same agent
// whose stage is compatible is chosen.
func (s State) find(key Key) int {
	best := -1
	var bestSeq uint64
	for i, slot := range s.slots {
		existing := slot.Update.Key()
		if existing.exact(key) {
			return i
		}
		if existing.Matches(key) && (best < 0 || slot.Seq > bestSeq) {
			best = i
			bestSeq = slot.Seq
		}
	}
	return best
}

// with returns a copy of the state in which slot idx (or a new slot when
// idx < 0) holds u.
func (s State) with(idx int, u Update) State {
	next := State{seq: s.seq + 1}
	if idx < 0 {
		next.slots = make([]Slot, len(s.slots), len(s.slots)+1)
		copy(next.slots, s.slots)
		next.slots = append(next.slots, Slot{Update: u, Seq: next.seq})
		return next
	}
	next.slots = make([]Slot, len(s.slots))
	copy(next.slots, s.slots)
	next.slots[idx] = Slot{Update: u, Seq: next.seq}
	return next
}
