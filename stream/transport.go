// ABOUTME: Transport abstraction over the two upstream integration shapes and the shared stream reader loop.
// ABOUTME: Consume drives framer, extractor and handler strictly in arrival order until done, stop, EOF or cancellation.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/2389-research/mop/sse"
)

// Handler receives every accepted event in arrival order. It runs on the
// reader goroutine and must not block for long.
type Handler func(Event)

// Result describes how a transport run ended.
type Result struct {
	// Done is set when the done signal was received.
	Done bool
	// Stopped is set when the run was halted by a system stop.
	Stopped bool
	// FailedAgent names the agent that reported a failure, which ends a
	// sequential run.
	FailedAgent string
	Stats       Stats
}

// Transport runs one analysis of problem against the upstream server,
// delivering events to h. Errors are transport failures; a halted run or
// an agent failure is reported through Result.
type Transport interface {
	Run(ctx context.Context, problem string, h Handler) (Result, error)
}

// DefaultChunkSize is the read size used by Consume.
const DefaultChunkSize = 4096

// Consume reads r until the done signal, a system stop, EOF or ctx
// cancellation, feeding each framed line through a fresh extractor to h.
// A trailing unterminated fragment at EOF is discarded. The caller closes r.
func Consume(ctx context.Context, r io.Reader, h Handler, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var framer sse.Framer
	ex := NewExtractor(logger)
	buf := make([]byte, DefaultChunkSize)

	var res Result
	for {
		if err := ctx.Err(); err != nil {
			res.Stats = ex.Stats()
			return res, err
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			for _, line := range framer.Feed(buf[:n]) {
				ev, ok := ex.Extract(line)
				if !ok {
					continue
				}
				h(ev)
				if ev.Kind == KindStopped {
					res.Stopped = true
					res.Stats = ex.Stats()
					return res, nil
				}
				if ev.Done {
					res.Done = true
					res.Stats = ex.Stats()
					return res, nil
				}
			}
		}

		if readErr != nil {
			res.Stats = ex.Stats()
			if errors.Is(readErr, io.EOF) {
				if pending := framer.Pending(); pending != "" {
					logger.Debug("discarding unterminated fragment", "component", "stream", "bytes", len(pending))
				}
				framer.Reset()
				return res, nil
			}
			if err := ctx.Err(); err != nil {
				return res, err
			}
			return res, fmt.Errorf("reading stream: %w", readErr)
		}
	}
}
