package linker

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the name of the tracer for resolution operations.
const TracerName = "linker"

// Span attribute keys.
const (
	AttrTenantID     = "tenant_id"
	AttrExtractionID = "extraction_id"
	AttrSourceID     = "source_id"
	AttrOutcome      = "outcome"
	AttrLinksWritten = "links_written"
)

// SpanResolutionRun is the root span for one resolution run.
const SpanResolutionRun = "linker.resolution_run"

// Tracer provides distributed tracing for resolution runs.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer using the globally configured provider.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(TracerName),
	}
}

// StartRunSpan starts the root span for one resolution run.
func (t *Tracer) StartRunSpan(ctx context.Context, extractionID int64) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanResolutionRun,
		trace.WithAttributes(
			attribute.Int64(AttrExtractionID, extractionID),
		),
	)
}

// EndRunSpan annotates and ends the run span.
func EndRunSpan(span trace.Span, summary *Summary, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if summary != nil {
		span.SetAttributes(
			attribute.String(AttrTenantID, summary.TenantID),
			attribute.Int64(AttrSourceID, summary.SourceID),
			attribute.String(AttrOutcome, string(summary.Outcome)),
			attribute.Int(AttrLinksWritten, summary.LinksWritten),
		)
	}
	span.End()
}
