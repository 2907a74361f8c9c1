package logging

import (
	"context"

	"github.com/fyrsmithlabs/causalityd/internal/tracker"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 8)

	// Trace correlation (from OpenTelemetry)
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	// Causality correlation: flattened context of the active chain.
	if trk := TrackerFromContext(ctx); trk != nil {
		for k, v := range trk.CausalityContext() {
			fields = append(fields, zap.Any(k, v))
		}
	}

	// Request ID
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}

	return fields
}

// Context key types
type trackerCtxKey struct{}
type requestCtxKey struct{}

// WithTracker attaches a tracker whose active-chain causality context is
// merged into every log line written with this context.
func WithTracker(ctx context.Context, t *tracker.Tracker) context.Context {
	return context.WithValue(ctx, trackerCtxKey{}, t)
}

// TrackerFromContext returns the attached tracker, or nil.
func TrackerFromContext(ctx context.Context) *tracker.Tracker {
	t, _ := ctx.Value(trackerCtxKey{}).(*tracker.Tracker)
	return t
}

// WithRequestID attaches a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext returns the attached request ID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestCtxKey{}).(string)
	return id
}
