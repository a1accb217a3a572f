// ABOUTME: The update reconciler: merges one incoming update into the reconciled state.
// ABOUTME: Enforces that a completed slot never regresses and that seen response text is never lost.
package reconcile

// Merge folds incoming into current and returns the resulting state.
//
// A slot that has reached complete stays complete; only a missing response
// may be filled in by a later update (first complete response wins). A
// non-complete slot adopts an incoming complete, error or thinking update,
// keeping the previously seen response when the incoming one has none. An
// error slot is terminal against thinking: only complete or a fresh error
// replace it. Any
// other incoming status on an existing non-complete slot is a stale echo and
// leaves the state unchanged. Merges that would store an identical update
// return current unchanged.
func Merge(current State, incoming Update) State {
	idx := current.find(incoming.Key())
	if idx < 0 {
		return current.with(-1, incoming)
	}

	existing := current.slots[idx].Update
	var next Update

	switch {
	case existing.Status == StatusComplete:
		next = existing
		if existing.Response == "" && incoming.Response != "" {
			next.Response = incoming.Response
		}

	case existing.Status == StatusError && incoming.Status == StatusThinking:
		return current

	case incoming.Status == StatusComplete,
		incoming.Status == StatusError,
		incoming.Status == StatusThinking:
		next = incoming
		if next.Response == "" {
			next.Response = existing.Response
		}

	default:
		return current
	}

	// A slot keeps its ordering hints when the newer report omits them.
	if next.Stage == nil {
		next.Stage = existing.Stage
	}
	if next.Iteration == nil {
		next.Iteration = existing.Iteration
	}

	if sameUpdate(existing, next) {
		return current
	}
	return current.with(idx, next)
}

// MergeAll folds updates into current in order.
func MergeAll(current State, updates ...Update) State {
	for _, u := range updates {
		current = Merge(current, u)
	}
	return current
}
