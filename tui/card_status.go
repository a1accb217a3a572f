// ABOUTME: Status markers for projected agent cards: bracket icons, inline glyphs and spinner frames.
// ABOUTME: Also holds the one-line card summary shared by the inline view and the dashboard agents panel.
package tui

import (
	"fmt"

	"github.com/2389-research/mop/config"
	"github.com/2389-research/mop/project"
)

// QueuedText is shown for agents waiting their turn.
const QueuedText = "Waiting in queue..."

// Icon returns a bracket-style status marker for panel display.
func Icon(s project.Status) string {
	switch s {
	case project.StatusPending:
		return "[ ]"
	case project.StatusQueued:
		return "[.]"
	case project.StatusThinking:
		return "[~]"
	case project.StatusComplete:
		return "[*]"
	case project.StatusError:
		return "[!]"
	default:
		return "[?]"
	}
}

// Glyph returns the single-character marker used by the inline view.
// Thinking cards use the current spinner frame instead.
func Glyph(s project.Status, spinner int) string {
	switch s {
	case project.StatusThinking:
		return SpinnerFrames[spinner%len(SpinnerFrames)]
	case project.StatusComplete:
		return "✓"
	case project.StatusError:
		return "✗"
	case project.StatusQueued:
		return "…"
	default:
		return " "
	}
}

// SpinnerFrames contains the Braille-dot animation frames for thinking agents.
var SpinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// cardCaption is the short text after the agent name.
func cardCaption(c project.Card) string {
	switch c.Status {
	case project.StatusThinking:
		if c.Message != "" {
			return c.Message
		}
		return "thinking..."
	case project.StatusQueued:
		return QueuedText
	case project.StatusError:
		if c.Message != "" {
			return "error: " + c.Message
		}
		return "error"
	case project.StatusComplete:
		if c.Stage != nil {
			return fmt.Sprintf("stage %d", *c.Stage)
		}
		return "complete"
	default:
		return ""
	}
}

// agentLabel is the icon and display name of an agent.
func agentLabel(a config.Agent) string {
	if a.Icon != "" {
		return a.Icon + " " + a.Title()
	}
	return a.Title()
}
