package channel

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"
)

// Middleware wraps a Handler to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps outermost).
type Middleware func(next Handler) Handler

// RecoveryMiddleware isolates each delivery: a panicking handler is logged
// and the next message is delivered normally.
func RecoveryMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, buf *BinaryBuffer) {
			defer func() {
				if r := recover(); r != nil {
					attrs := []any{"panic", r, "size", buf.Len(), "stack", string(debug.Stack())}
					if dc, ok := DeliveryFrom(ctx); ok {
						attrs = append(attrs, "channel", dc.Channel(), "seq", dc.Seq())
					}
					logger.ErrorContext(ctx, "channel handler panicked", attrs...)
				}
			}()
			next(ctx, buf)
		}
	}
}

// LoggingMiddleware logs each delivery at debug level.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, buf *BinaryBuffer) {
			name := "unknown"
			var seq uint64
			if dc, ok := DeliveryFrom(ctx); ok {
				name = dc.Channel()
				seq = dc.Seq()
			}
			size := buf.Len()
			start := time.Now()
			next(ctx, buf)
			logger.DebugContext(ctx, "message delivered",
				"channel", name,
				"seq", seq,
				"size", size,
				"duration", time.Since(start))
		}
	}
}

func chain(h Handler, mw []Middleware) Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}
