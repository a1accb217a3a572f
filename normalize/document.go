// ABOUTME: Display document model produced by the normalizer: blocks of inline runs.
// ABOUTME: Provides plain text and markdown views so terminal, web and report renderers share one structure.
package normalize

import "strings"

// BlockKind distinguishes headings from ordinary lines.
type BlockKind int

const (
	BlockLine BlockKind = iota
	BlockHeading
)

// InlineKind distinguishes emphasized runs from plain text.
type InlineKind int

const (
	InlineText InlineKind = iota
	InlineStrong
)

// Inline is a run of text inside a block.
type Inline struct {
	Kind InlineKind `json:"kind"`
	Text string     `json:"text"`
}

// Block is one rendered line. Level is 2 or 3 for headings. Break marks an
// explicit line break after a text line.
type Block struct {
	Kind    BlockKind `json:"kind"`
	Level   int       `json:"level,omitempty"`
	Inlines []Inline  `json:"inlines"`
	Break   bool      `json:"break,omitempty"`
}

// Text returns the visible text of the block with markers stripped.
func (b Block) Text() string {
	var sb strings.Builder
	for _, in := range b.Inlines {
		sb.WriteString(in.Text)
	}
	return sb.String()
}

// Document is the normalized form of one response.
type Document struct {
	Blocks []Block `json:"blocks"`
}

// IsEmpty reports whether the document has no visible text.
func (d Document) IsEmpty() bool {
	for _, b := range d.Blocks {
		if strings.TrimSpace(b.Text()) != "" {
			return false
		}
	}
	return true
}

// Lines returns the visible text of each block.
func (d Document) Lines() []string {
	out := make([]string, len(d.Blocks))
	for i, b := range d.Blocks {
		out[i] = b.Text()
	}
	return out
}

// PlainText joins the visible lines with newlines.
func (d Document) PlainText() string {
	return strings.Join(d.Lines(), "\n")
}

// Markdown re-renders the document as markdown. Headings get a blank line
// around them and text lines end in a hard break so the structure survives
// a CommonMark renderer.
func (d Document) Markdown() string {
	var sb strings.Builder
	for i, b := range d.Blocks {
		switch b.Kind {
		case BlockHeading:
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(strings.Repeat("#", b.Level))
			sb.WriteString(" ")
			writeInlinesMarkdown(&sb, b.Inlines)
			sb.WriteString("\n\n")
		default:
			writeInlinesMarkdown(&sb, b.Inlines)
			if b.Break {
				sb.WriteString("  ")
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func writeInlinesMarkdown(sb *strings.Builder, inlines []Inline) {
	for _, in := range inlines {
		if in.Kind == InlineStrong {
			sb.WriteString("**")
			sb.WriteString(in.Text)
			sb.WriteString("**")
			continue
		}
		sb.WriteString(in.Text)
	}
}
