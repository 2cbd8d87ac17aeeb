// Package instrument wraps proxied operations with uniform logging and a
// tracing span, without altering their behavior.
package instrument

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcpbridge/bridge/pkg/logging"
)

const tracerName = "github.com/mcpbridge/bridge/pkg/instrument"

// Operation is a proxied operation: raw params in, raw result out. The
// payloads are opaque to the wrapper.
type Operation func(ctx context.Context, params json.RawMessage) (json.RawMessage, error)

// Wrap returns an Operation that logs a start line, runs op, and logs either
// a completion line or a failure line with the elapsed time. The wrapped
// operation's result and error pass through unchanged; in particular a
// failure re-returns the exact error value op produced.
//
// The wrapper is stateless: one Wrap call can instrument any number of
// operations, and wrapped operations may run concurrently.
func Wrap(name string, op Operation, logger logging.Logger) Operation {
	if logger == nil {
		logger = logging.Nop()
	}
	tracer := otel.Tracer(tracerName)

	return func(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
		ctx, span := tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()

		logger.Info(fmt.Sprintf("Proxying %s...", name))
		start := time.Now()

		result, err := op(ctx, params)
		elapsed := time.Since(start)

		span.SetAttributes(attribute.Int64("bridge.duration_ms", elapsed.Milliseconds()))

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error(fmt.Sprintf("%s FAILED in %dms: %v", name, elapsed.Milliseconds(), err))
			return result, err
		}

		span.SetStatus(codes.Ok, "")
		logger.Info(fmt.Sprintf("%s completed in %dms", name, elapsed.Milliseconds()))
		return result, nil
	}
}
