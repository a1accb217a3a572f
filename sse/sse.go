// ABOUTME: Server-Sent Events field parsing for lines produced by the Framer.
// ABOUTME: Recognizes the data field prefix and splits SSE lines into field and value.
package sse

import "strings"

// DataPrefix is the textual prefix marking an event payload line.
const DataPrefix = "data: "

// IsComment reports whether the line is an SSE comment (keep-alive pings).
func IsComment(line string) bool {
	return strings.HasPrefix(line, ":")
}

// DataPayload returns the payload carried by a data line and true, or "" and
// false when the line is not a data line. Both "data: x" and "data:x" are
// accepted; only a single leading space is stripped.
func DataPayload(line string) (string, bool) {
	if IsComment(line) {
		return "", false
	}
	field, value := parseLine(line)
	if field != "data" {
		return "", false
	}
	return value, true
}

// parseLine splits an SSE line into field name and value.
// If there is no colon, the entire line is the field name and value is empty.
// If there is a colon, the field is everything before the first colon,
// and the value is everything after, with a single leading space stripped.
func parseLine(line string) (field, value string) {
	colonIdx := strings.IndexByte(line, ':')
	if colonIdx == -1 {
		return line, ""
	}
	field = line[:colonIdx]
	value = line[colonIdx+1:]
	if len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}
	return field, value
}
