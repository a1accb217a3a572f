// ABOUTME: Text normalizer turning raw agent responses into display documents.
// ABOUTME: Digs embedded text out of stringified response objects, then renders headings, bold spans and line breaks.
package normalize

import (
	"regexp"
	"strings"
)

// Pattern is one embedded-text matcher. The first capture group is the text.
type Pattern struct {
	Name string
	Re   *regexp.Regexp
}

// Patterns are tried in order; the first that matches wins. Quoted forms
// honor backslash escapes so an escaped quote does not end the capture.
// They only run on input that looks like a stringified response object.
var Patterns = []Pattern{
	{Name: "text-single", Re: regexp.MustCompile(`(?s)\btext='((?:[^'\\]|\\.)*)'`)},
	{Name: "text-double", Re: regexp.MustCompile(`(?s)\btext="((?:[^"\\]|\\.)*)"`)},
	{Name: "text-bare", Re: regexp.MustCompile(`\btext=([^,}'"\s][^,}]*)`)},
	{Name: "key-single", Re: regexp.MustCompile(`(?s)'text':\s*'((?:[^'\\]|\\.)*)'`)},
	{Name: "key-double", Re: regexp.MustCompile(`(?s)"text":\s*"((?:[^"\\]|\\.)*)"`)},
}

var unescaper = strings.NewReplacer(
	`\\`, `\`,
	`\n`, "\n",
	`\t`, "\t",
	`\'`, "'",
	`\"`, `"`,
)

// markers gate extraction; a plain answer that merely mentions text= or
// quotes a JSON sample is taken literally.
var markers = []string{"ResponseOutputText", "text='", `text="`}

func looksEmbedded(raw string) bool {
	for _, m := range markers {
		if strings.Contains(raw, m) {
			return true
		}
	}
	return false
}

// ExtractText returns the embedded text of a stringified response object,
// unescaped and trimmed. Input that matches no pattern is returned unchanged.
func ExtractText(raw string) string {
	text, _ := extract(raw)
	return text
}

// MatchedPattern returns the name of the pattern ExtractText would use, or
// "" when the input is taken literally.
func MatchedPattern(raw string) string {
	_, name := extract(raw)
	return name
}

func extract(raw string) (string, string) {
	if !looksEmbedded(raw) {
		return raw, ""
	}
	for _, p := range Patterns {
		m := p.Re.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		return strings.TrimSpace(unescaper.Replace(m[1])), p.Name
	}
	return raw, ""
}

var boldRe = regexp.MustCompile(`\*\*(.*?)\*\*`)

// Render builds a document from text line by line. Lines starting with ###
// become level 3 headings, lines starting with ## level 2 headings. Every
// other line is a text line followed by a break unless it is the last line.
// **bold** spans become strong inlines anywhere. Never fails.
func Render(text string) Document {
	if text == "" {
		return Document{}
	}
	lines := strings.Split(text, "\n")
	doc := Document{Blocks: make([]Block, 0, len(lines))}

	for i, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "###"):
			doc.Blocks = append(doc.Blocks, Block{
				Kind:    BlockHeading,
				Level:   3,
				Inlines: inlines(strings.TrimSpace(strings.TrimLeft(trimmed, "#"))),
			})
		case strings.HasPrefix(trimmed, "##"):
			doc.Blocks = append(doc.Blocks, Block{
				Kind:    BlockHeading,
				Level:   2,
				Inlines: inlines(strings.TrimSpace(strings.TrimLeft(trimmed, "#"))),
			})
		default:
			doc.Blocks = append(doc.Blocks, Block{
				Kind:    BlockLine,
				Inlines: inlines(line),
				Break:   i < len(lines)-1,
			})
		}
	}
	return doc
}

// Normalize extracts and renders raw in one step.
func Normalize(raw string) Document {
	return Render(ExtractText(raw))
}

// inlines splits s into plain and strong runs. Empty runs are dropped.
func inlines(s string) []Inline {
	var out []Inline
	last := 0
	for _, m := range boldRe.FindAllStringSubmatchIndex(s, -1) {
		if m[0] > last {
			out = append(out, Inline{Kind: InlineText, Text: s[last:m[0]]})
		}
		if m[3] > m[2] {
			out = append(out, Inline{Kind: InlineStrong, Text: s[m[2]:m[3]]})
		}
		last = m[1]
	}
	if last < len(s) {
		out = append(out, Inline{Kind: InlineText, Text: s[last:]})
	}
	return out
}
