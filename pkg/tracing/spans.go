package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const dbTracerName = "banking-service/database"

// StartDBSpan starts a client span for a database round trip. The caller
// must end the returned span, typically via EndDBSpan to record the error.
func StartDBSpan(ctx context.Context, operation, table string) (context.Context, trace.Span) {
	return otel.Tracer(dbTracerName).Start(ctx, operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", operation),
			attribute.String("db.sql.table", table),
		),
	)
}

// EndDBSpan ends a database span, recording err when non-nil
func EndDBSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
