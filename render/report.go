// ABOUTME: Builds exportable run reports from session snapshots: markdown text and a goldmark-rendered HTML page.
// ABOUTME: Sections follow the projected card order, with the final insights panel last.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389-research/mop/config"
	"github.com/2389-research/mop/normalize"
	"github.com/2389-research/mop/project"
	"github.com/2389-research/mop/session"
)

// Report is the exportable view of one run.
type Report struct {
	Problem  string
	RunID    string
	Outcome  session.Outcome
	Active   bool
	Err      string
	Started  time.Time
	Elapsed  time.Duration
	Cards    []project.Card
	Final    *normalize.Document
	Catalog  config.Config
	Progress project.Progress
}

// FromSnapshot projects snap through p into a report.
func FromSnapshot(snap session.Snapshot, cfg config.Config, p *project.Projector, now time.Time) Report {
	cards := p.Project(snap.State, snap.Active)
	r := Report{
		Problem:  snap.Problem,
		RunID:    snap.RunID,
		Outcome:  snap.Outcome,
		Active:   snap.Active,
		Err:      snap.Err,
		Started:  snap.StartedAt,
		Elapsed:  snap.Elapsed(now),
		Cards:    cards,
		Catalog:  cfg,
		Progress: project.Summarize(cards),
	}
	if doc, ok := p.FinalInsights(snap.State, cfg.FinalAgent()); ok {
		r.Final = &doc
	}
	return r
}

// State returns a one-word description of where the run stands.
func (r Report) State() string {
	switch {
	case r.Active:
		return "running"
	case r.Outcome == session.OutcomeNone:
		return "idle"
	default:
		return string(r.Outcome)
	}
}

// Markdown renders the report as markdown.
func (r Report) Markdown() string {
	var sb strings.Builder
	sb.WriteString("# Analysis report\n\n")

	if r.Problem != "" {
		sb.WriteString("**Problem:** ")
		sb.WriteString(oneLine(r.Problem))
		sb.WriteString("\n\n")
	}
	fmt.Fprintf(&sb, "**Run:** %s  \n", orDash(r.RunID))
	fmt.Fprintf(&sb, "**State:** %s  \n", r.State())
	if !r.Started.IsZero() {
		fmt.Fprintf(&sb, "**Started:** %s  \n", r.Started.Format(time.RFC3339))
		fmt.Fprintf(&sb, "**Elapsed:** %s  \n", r.Elapsed.Round(time.Second))
	}
	fmt.Fprintf(&sb, "**Agents finished:** %d/%d\n", r.Progress.Finished(), r.Progress.Total)
	if r.Err != "" {
		fmt.Fprintf(&sb, "\n> %s\n", oneLine(r.Err))
	}

	for _, c := range r.Cards {
		a := r.Catalog.Agent(c.Agent)
		sb.WriteString("\n## ")
		if a.Icon != "" {
			sb.WriteString(a.Icon + " ")
		}
		sb.WriteString(a.Title())
		sb.WriteString("\n\n")
		fmt.Fprintf(&sb, "_%s_\n\n", cardStatus(c))
		if body := cardBody(c); body != "" {
			sb.WriteString(body)
			sb.WriteString("\n")
		}
	}

	if r.Final != nil && !r.Final.IsEmpty() {
		a := r.Catalog.Agent(r.Catalog.FinalAgent())
		sb.WriteString("\n## ")
		if a.Icon != "" {
			sb.WriteString(a.Icon + " ")
		}
		sb.WriteString(a.Title())
		sb.WriteString("\n\n")
		sb.WriteString(r.Final.Markdown())
		sb.WriteString("\n")
	}
	return sb.String()
}

func cardStatus(c project.Card) string {
	var parts []string
	parts = append(parts, string(c.Status))
	if c.Stage != nil {
		parts = append(parts, fmt.Sprintf("stage %d", *c.Stage))
	}
	if c.Iteration != nil {
		parts = append(parts, fmt.Sprintf("iteration %d", *c.Iteration))
	}
	return strings.Join(parts, " · ")
}

func cardBody(c project.Card) string {
	switch c.Status {
	case project.StatusComplete:
		if c.Document != nil {
			return c.Document.Markdown()
		}
	case project.StatusError:
		msg := c.Message
		if msg == "" {
			msg = "The agent reported an error."
		}
		return "> " + oneLine(msg) + "\n"
	case project.StatusThinking:
		if c.Message != "" {
			return oneLine(c.Message) + "\n"
		}
	case project.StatusQueued:
		return "Waiting in queue...\n"
	}
	return ""
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// HTML converts markdown to an HTML fragment. Raw HTML in the input is
// omitted from the output.
func HTML(md string) ([]byte, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}
	return buf.Bytes(), nil
}

var pageTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 52rem; margin: 2rem auto; padding: 0 1rem; line-height: 1.5; color: #1f2937; }
h2 { border-bottom: 1px solid #e5e7eb; padding-bottom: .25rem; margin-top: 2rem; }
blockquote { color: #b91c1c; border-left: 3px solid #ef4444; margin-left: 0; padding-left: 1rem; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// HTMLPage renders the report as a standalone HTML document.
func (r Report) HTMLPage() ([]byte, error) {
	body, err := HTML(r.Markdown())
	if err != nil {
		return nil, err
	}
	title := "Analysis report"
	if r.Problem != "" {
		title += ": " + truncate(oneLine(r.Problem), 80)
	}
	var buf bytes.Buffer
	err = pageTmpl.Execute(&buf, struct {
		Title string
		Body  template.HTML
	}{title, template.HTML(body)})
	if err != nil {
		return nil, fmt.Errorf("render report page: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes the report to path: an HTML page for .html and .htm
// files, markdown otherwise.
func (r Report) WriteFile(path string) error {
	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		page, err := r.HTMLPage()
		if err != nil {
			return err
		}
		data = page
	default:
		data = []byte(r.Markdown())
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
