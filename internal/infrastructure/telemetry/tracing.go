package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer used for engine spans
const TracerName = "agency-backend/obligation"

// Span attribute keys
const (
	AttrOperation   = attribute.Key("obligation.operation")
	AttrContractID  = attribute.Key("obligation.contract_id")
	AttrSaleID      = attribute.Key("obligation.sale_id")
	AttrCommission  = attribute.Key("obligation.commission_id")
	AttrTransaction = attribute.Key("obligation.transaction_id")
	AttrAffected    = attribute.Key("obligation.items_affected")
	AttrFailed      = attribute.Key("obligation.items_failed")
	AttrOutcome     = attribute.Key("obligation.outcome")
)

// StartSpan starts an internal span on the global tracer provider
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// End records err on span, if any, and ends it
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// TraceID returns the trace ID of the span in ctx, or "" when there is none
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.TraceID().IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
