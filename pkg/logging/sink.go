package logging

import (
	"strings"
)

// Sink consumes one rendered log line at a time. It is the integration
// point for hosts that own their own logging: every entry the bridge emits
// is delivered as a single complete line, never a fragment.
type Sink func(line string)

// sinkWriter adapts a Sink to io.Writer. The logger hands Write exactly one
// formatted entry per call, so each call forwards one complete line.
type sinkWriter struct {
	sink Sink
}

func (w sinkWriter) Write(p []byte) (n int, err error) {
	// A panicking sink must not take down the caller's state transition.
	defer func() {
		if r := recover(); r != nil {
			n, err = len(p), nil
		}
	}()

	w.sink(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// NewSinkLogger builds a Logger that delivers every line to sink. Timestamps
// are left to the sink's owner.
func NewSinkLogger(sink Sink) Logger {
	if sink == nil {
		return Nop()
	}

	return New(sinkWriter{sink: sink}, &TextFormatter{
		DisableTimestamp: true,
		DisableColors:    true,
	})
}
