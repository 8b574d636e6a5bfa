package tracing

import (
	"context"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// compositeExporter fans spans out to several exporters, such as the
// environment-selected exporter and an in-process recorder.
type compositeExporter struct {
	exporters []sdktrace.SpanExporter
}

func newCompositeExporter(exporters ...sdktrace.SpanExporter) *compositeExporter {
	return &compositeExporter{exporters: exporters}
}

// ExportSpans exports to each exporter in turn and stops at the first error.
func (ce *compositeExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, exporter := range ce.exporters {
		if err := exporter.ExportSpans(ctx, spans); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown shuts each exporter down and stops at the first error.
func (ce *compositeExporter) Shutdown(ctx context.Context) error {
	for _, exporter := range ce.exporters {
		if err := exporter.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}
