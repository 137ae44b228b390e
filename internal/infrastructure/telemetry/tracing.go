package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the tracer used for application spans
const TracerName = "storefront"

// Span attribute keys
const (
	SpanAttrCategory      = "catalog.category"
	SpanAttrGeneration    = "catalog.generation"
	SpanAttrSuperseded    = "catalog.superseded"
	SpanAttrItemCount     = "catalog.item_count"
	SpanAttrLineCount     = "order.line_count"
	SpanAttrIdempotency   = "order.idempotency_key"
	SpanAttrStrategy      = "identity.strategy"
	SpanAttrBackendAction = "backend.action"
)

// StartSpan starts an internal span named {component}.{operation}.
// The caller must call span.End().
//
//	ctx, span := telemetry.StartSpan(ctx, "order", "submit")
//	defer span.End()
func StartSpan(ctx context.Context, component, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, fmt.Sprintf("%s.%s", component, operation),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// StartClientSpan starts a client span for an outbound call
func StartClientSpan(ctx context.Context, component, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, fmt.Sprintf("%s.%s", component, operation),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// End records err (if any) on the span, sets its status and ends it.
// Intended for use with a named error return:
//
//	defer func() { telemetry.End(span, err) }()
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
