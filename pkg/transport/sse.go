package transport

import (
	"bufio"
	"context"
	"strings"
)

// sseEvent is one parsed Server-Sent Events message
type sseEvent struct {
	name string
	data string
	id   string
}

// scanEvents parses a text/event-stream body and invokes fn for each
// complete event. It returns when the stream ends or ctx is cancelled; the
// caller owns closing the underlying body, which is what unblocks a read in
// progress.
func scanEvents(ctx context.Context, r *bufio.Scanner, fn func(sseEvent)) error {
	var ev sseEvent
	flush := func() {
		if ev.data != "" || ev.name != "" {
			if ev.name == "" {
				ev.name = "message"
			}
			fn(ev)
		}
		ev = sseEvent{}
	}

	for r.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := r.Text()
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, ":"):
			// Comment / keep-alive
		case strings.HasPrefix(line, "event:"):
			ev.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimPrefix(line, "data:")
			data = strings.TrimPrefix(data, " ")
			if ev.data != "" {
				ev.data += "\n"
			}
			ev.data += data
		case strings.HasPrefix(line, "id:"):
			ev.id = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		}
	}

	flush()
	return r.Err()
}
