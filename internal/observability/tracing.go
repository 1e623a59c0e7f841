package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const TracerName = "minutes.pipeline"

const (
	AttrRequestID = "request_id"
	AttrStage     = "stage"
	AttrOrdinal   = "ordinal"
	AttrErrorKind = "error_kind"
	AttrRetryable = "retryable"
)

// Tracer wraps the global otel tracer. Without a configured SDK provider the spans
// are no-ops.
type Tracer struct {
	tracer trace.Tracer
}

func NewTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer(TracerName)}
}

func (t *Tracer) StartRequest(ctx context.Context, requestID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "pipeline.request",
		trace.WithAttributes(attribute.String(AttrRequestID, requestID)),
	)
}

func (t *Tracer) StartStage(ctx context.Context, stage string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "pipeline.stage."+stage,
		trace.WithAttributes(attribute.String(AttrStage, stage)),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
