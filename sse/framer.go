// ABOUTME: Line framer that turns arbitrarily chunked stream bytes into complete logical lines.
// ABOUTME: Buffers the trailing partial line across chunks; a fragment left at stream end is discarded.
package sse

import "bytes"

// Framer splits successive chunks of a text stream into complete lines.
// It keeps the trailing fragment of each chunk until a later chunk supplies
// its terminating newline. The zero value is ready to use.
type Framer struct {
	buf []byte
}

// Feed appends chunk to the buffered fragment and returns every line that is
// now complete, in stream order, without its line terminator. A single
// trailing carriage return is stripped so CRLF streams frame the same as LF
// streams. The final, unterminated fragment stays buffered.
func (f *Framer) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	f.buf = append(f.buf, chunk...)

	var lines []string
	for {
		idx := bytes.IndexByte(f.buf, '\n')
		if idx < 0 {
			break
		}
		line := f.buf[:idx]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		lines = append(lines, string(line))
		f.buf = f.buf[idx+1:]
	}

	// Copy the fragment out so consumed chunks are not pinned in memory.
	if len(f.buf) == 0 {
		f.buf = nil
	} else if len(lines) > 0 {
		f.buf = append([]byte(nil), f.buf...)
	}

	return lines
}

// Pending returns the buffered fragment that has not been terminated yet.
func (f *Framer) Pending() string {
	return string(f.buf)
}

// Reset discards the buffered fragment. Called at stream end: a trailing
// partial line is never treated as a complete event.
func (f *Framer) Reset() {
	f.buf = nil
}
