// ABOUTME: Presentation projector deriving one display card per known agent from reconciled state.
// ABOUTME: Pure function of state and the run-active flag; synthesizes queued and pending, sorts by stage.
package project

import (
	"sort"

	"github.com/2389-research/mop/normalize"
	"github.com/2389-research/mop/reconcile"
)

// Status is the projected display state of an agent.
type Status string

const (
	StatusComplete Status = "complete"
	StatusError    Status = "error"
	StatusThinking Status = "thinking"
	StatusQueued   Status = "queued"
	StatusPending  Status = "pending"
)

// Card is the rendering-boundary record for one agent.
type Card struct {
	Agent     string              `json:"agent"`
	Status    Status              `json:"status"`
	Stage     *int                `json:"stage,omitempty"`
	Iteration *int                `json:"iteration,omitempty"`
	Message   string              `json:"message,omitempty"`
	Response  string              `json:"response,omitempty"`
	Document  *normalize.Document `json:"blocks,omitempty"`
}

// Order returns the card's sort position; cards without a stage sort last.
func (c Card) Order() int {
	if c.Stage == nil {
		return reconcile.NoStage
	}
	return *c.Stage
}

// Projector maps state to cards for a fixed, ordered list of agents.
type Projector struct {
	Agents    []string
	Normalize func(string) normalize.Document
}

// New creates a projector. A nil norm uses normalize.Normalize.
func New(agents []string, norm func(string) normalize.Document) *Projector {
	if norm == nil {
		norm = normalize.Normalize
	}
	return &Projector{Agents: agents, Normalize: norm}
}

// Project returns one card per known agent sorted by stage ascending, ties
// kept in agent-list order. A complete report beats an error report, which
// beats thinking. An agent with no started report is queued while the run is
// active and some known agent has started, and pending otherwise.
func (p *Projector) Project(state reconcile.State, active bool) []Card {
	started := false
	for _, agent := range p.Agents {
		for _, slot := range state.ForAgent(agent) {
			if s := slot.Update.Status; s == reconcile.StatusThinking || s == reconcile.StatusComplete {
				started = true
			}
		}
	}

	cards := make([]Card, 0, len(p.Agents))
	for _, agent := range p.Agents {
		cards = append(cards, p.card(agent, state.ForAgent(agent), active && started))
	}

	sort.SliceStable(cards, func(i, j int) bool {
		return cards[i].Order() < cards[j].Order()
	})
	return cards
}

func (p *Projector) card(agent string, slots []reconcile.Slot, queued bool) Card {
	c := Card{Agent: agent}

	u, ok := latestWith(slots, reconcile.StatusComplete)
	if ok {
		c.Status = StatusComplete
	} else if u, ok = latestWith(slots, reconcile.StatusError); ok {
		c.Status = StatusError
	} else if u, ok = latestWith(slots, reconcile.StatusThinking); ok {
		c.Status = StatusThinking
	}

	if !ok {
		if queued {
			c.Status = StatusQueued
		} else {
			c.Status = StatusPending
		}
		// A not-yet-started agent still sorts by any stage it was given.
		if last, found := latest(slots); found {
			c.Stage = last.Stage
			c.Iteration = last.Iteration
		}
		return c
	}

	c.Stage = u.Stage
	c.Iteration = u.Iteration
	switch c.Status {
	case StatusComplete:
		c.Response = u.Response
		if u.Response != "" {
			doc := p.Normalize(u.Response)
			c.Document = &doc
		}
	case StatusError:
		c.Message = u.Message
		c.Response = u.Response
	case StatusThinking:
		c.Message = u.Message
	}
	return c
}

// FinalInsights returns the normalized response of agent once it has
// completed with a non-empty response.
func (p *Projector) FinalInsights(state reconcile.State, agent string) (normalize.Document, bool) {
	if agent == "" {
		return normalize.Document{}, false
	}
	u, ok := latestWith(state.ForAgent(agent), reconcile.StatusComplete)
	if !ok || u.Response == "" {
		return normalize.Document{}, false
	}
	return p.Normalize(u.Response), true
}

// Progress counts cards per projected status.
type Progress struct {
	Total    int
	Complete int
	Error    int
	Thinking int
	Queued   int
	Pending  int
}

// Finished returns the number of cards in a terminal state.
func (pr Progress) Finished() int {
	return pr.Complete + pr.Error
}

// Summarize tallies cards.
func Summarize(cards []Card) Progress {
	pr := Progress{Total: len(cards)}
	for _, c := range cards {
		switch c.Status {
		case StatusComplete:
			pr.Complete++
		case StatusError:
			pr.Error++
		case StatusThinking:
			pr.Thinking++
		case StatusQueued:
			pr.Queued++
		default:
			pr.Pending++
		}
	}
	return pr
}

func latestWith(slots []reconcile.Slot, status reconcile.Status) (reconcile.Update, bool) {
	var best reconcile.Slot
	found := false
	for _, s := range slots {
		if s.Update.Status == status && (!found || s.Seq > best.Seq) {
			best = s
			found = true
		}
	}
	return best.Update, found
}

func latest(slots []reconcile.Slot) (reconcile.Update, bool) {
	var best reconcile.Slot
	found := false
	for _, s := range slots {
		if !found || s.Seq > best.Seq {
			best = s
			found = true
		}
	}
	return best.Update, found
}
