// ABOUTME: Renders normalized agent documents for the terminal: styled headings, bold runs and hard line breaks.
// ABOUTME: Lines are word-wrapped with reflow, which keeps ANSI styling intact across wrap points.
package tui

import (
	"strings"

	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"

	"github.com/2389-research/mop/normalize"
)

// RenderDocument renders doc wrapped to width columns, every line prefixed
// by pad spaces. A width of zero or less disables wrapping.
func RenderDocument(doc normalize.Document, width int, pad uint) string {
	if doc.IsEmpty() {
		return ""
	}

	wrap := width - int(pad)
	lines := make([]string, 0, len(doc.Blocks))
	for _, b := range doc.Blocks {
		var line string
		switch b.Kind {
		case normalize.BlockHeading:
			style := Heading3Style
			if b.Level <= 2 {
				style = Heading2Style
			}
			line = style.Render(b.Text())
		default:
			line = renderInlines(b.Inlines)
		}
		if wrap > 0 {
			line = wordwrap.String(line, wrap)
		}
		lines = append(lines, line)
	}

	out := strings.Join(lines, "\n")
	if pad > 0 {
		out = indent.String(out, pad)
	}
	return out
}

func renderInlines(inlines []normalize.Inline) string {
	var sb strings.Builder
	for _, in := range inlines {
		if in.Kind == normalize.InlineStrong {
			sb.WriteString(StrongStyle.Render(in.Text))
			continue
		}
		sb.WriteString(in.Text)
	}
	return sb.String()
}
