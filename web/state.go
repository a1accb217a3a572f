// ABOUTME: JSON view of a session snapshot served to browsers by /state and /events.
// ABOUTME: Cards carry the agent catalog entry and the response pre-rendered as sanitized HTML.
package web

import (
	"html"
	"time"

	"github.com/2389-research/mop/config"
	"github.com/2389-research/mop/normalize"
	"github.com/2389-research/mop/project"
	"github.com/2389-research/mop/render"
	"github.com/2389-research/mop/session"
	"github.com/2389-research/mop/stream"
)

// CardView is one agent card as the browser sees it.
type CardView struct {
	project.Card
	Name        string `json:"name"`
	Icon        string `json:"icon,omitempty"`
	Color       string `json:"color,omitempty"`
	Description string `json:"description,omitempty"`
	HTML        string `json:"html,omitempty"`
}

// FinalView is the final insights panel.
type FinalView struct {
	Agent    string              `json:"agent"`
	Name     string              `json:"name"`
	Icon     string              `json:"icon,omitempty"`
	Document *normalize.Document `json:"blocks"`
	HTML     string              `json:"html"`
}

// ProgressView counts cards per status.
type ProgressView struct {
	Total    int `json:"total"`
	Finished int `json:"finished"`
	Complete int `json:"complete"`
	Error    int `json:"error"`
	Thinking int `json:"thinking"`
	Queued   int `json:"queued"`
	Pending  int `json:"pending"`
}

// StateView is the full dashboard state.
type StateView struct {
	Seq           uint64             `json:"seq"`
	RunID         string             `json:"run_id,omitempty"`
	Problem       string             `json:"problem,omitempty"`
	Active        bool               `json:"active"`
	Outcome       string             `json:"outcome,omitempty"`
	Error         string             `json:"error,omitempty"`
	Stopping      bool               `json:"stopping"`
	KernelStopped bool               `json:"kernel_stopped"`
	StartedAt     *time.Time         `json:"started_at,omitempty"`
	ElapsedMS     int64              `json:"elapsed_ms"`
	Cards         []CardView         `json:"cards"`
	Final         *FinalView         `json:"final,omitempty"`
	Progress      ProgressView       `json:"progress"`
	Stats         stream.Stats       `json:"stats"`
	Log           []session.LogEntry `json:"log"`
}

// buildState projects snap for the browser.
func buildState(snap session.Snapshot, cat config.Config, p *project.Projector, now time.Time) StateView {
	cards := p.Project(snap.State, snap.Active)
	pr := project.Summarize(cards)

	v := StateView{
		Seq:           snap.Seq,
		RunID:         snap.RunID,
		Problem:       snap.Problem,
		Active:        snap.Active,
		Outcome:       string(snap.Outcome),
		Error:         snap.Err,
		Stopping:      snap.Stopping,
		KernelStopped: snap.KernelStopped,
		ElapsedMS:     snap.Elapsed(now).Milliseconds(),
		Cards:         make([]CardView, 0, len(cards)),
		Progress: ProgressView{
			Total:    pr.Total,
			Finished: pr.Finished(),
			Complete: pr.Complete,
			Error:    pr.Error,
			Thinking: pr.Thinking,
			Queued:   pr.Queued,
			Pending:  pr.Pending,
		},
		Stats: snap.Stats,
		Log:   snap.Log,
	}
	if v.Log == nil {
		v.Log = []session.LogEntry{}
	}
	if !snap.StartedAt.IsZero() {
		started := snap.StartedAt
		v.StartedAt = &started
	}

	for _, c := range cards {
		a := cat.Agent(c.Agent)
		cv := CardView{
			Card:        c,
			Name:        a.Title(),
			Icon:        a.Icon,
			Color:       a.Color,
			Description: a.Description,
		}
		if c.Document != nil {
			cv.HTML = documentHTML(*c.Document)
		}
		v.Cards = append(v.Cards, cv)
	}

	final := cat.FinalAgent()
	if doc, ok := p.FinalInsights(snap.State, final); ok {
		a := cat.Agent(final)
		v.Final = &FinalView{
			Agent:    final,
			Name:     a.Title(),
			Icon:     a.Icon,
			Document: &doc,
			HTML:     documentHTML(doc),
		}
	}
	return v
}

// documentHTML renders doc through the report's markdown converter. A
// conversion failure falls back to escaped plain text.
func documentHTML(doc normalize.Document) string {
	out, err := render.HTML(doc.Markdown())
	if err != nil {
		return "<pre>" + html.EscapeString(doc.PlainText()) + "</pre>"
	}
	return string(out)
}
