package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrWong99/aura"

type sessionKey struct{}

// StartSpan starts a span on the global aura tracer. A session id stored
// with [WithSession] is attached as the aura.session_id attribute. The
// caller must end the span.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if sid := SessionID(ctx); sid != "" {
		opts = append(opts, trace.WithAttributes(attribute.String("aura.session_id", sid)))
	}
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}

// WithSession returns a copy of ctx carrying the backend session id. An
// empty id leaves ctx unchanged.
func WithSession(ctx context.Context, sessionID string) context.Context {
	if sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

// SessionID returns the session id stored by [WithSession], or "".
func SessionID(ctx context.Context) string {
	sid, _ := ctx.Value(sessionKey{}).(string)
	return sid
}

// CorrelationID returns the trace id of the active span in ctx, or "".
func CorrelationID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger with the session id and the active
// span's trace_id and span_id attached, when ctx has them.
func Logger(ctx context.Context) *slog.Logger {
	var attrs []any
	if sid := SessionID(ctx); sid != "" {
		attrs = append(attrs, slog.String("session_id", sid))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	if len(attrs) == 0 {
		return slog.Default()
	}
	return slog.Default().With(attrs...)
}
