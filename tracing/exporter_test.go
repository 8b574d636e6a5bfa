package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type mockSpanExporter struct {
	exported bool
	shutdown bool
	fail     bool
}

func (m *mockSpanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	m.exported = true
	if m.fail {
		return errors.New("export error")
	}
	return nil
}

func (m *mockSpanExporter) Shutdown(ctx context.Context) error {
	m.shutdown = true
	if m.fail {
		return errors.New("shutdown error")
	}
	return nil
}

func TestCompositeExporter(t *testing.T) {
	a, b := &mockSpanExporter{}, &mockSpanExporter{}
	composite := newCompositeExporter(a, b)

	require.NoError(t, composite.ExportSpans(context.Background(), nil))
	require.True(t, a.exported && b.exported)
	require.NoError(t, composite.Shutdown(context.Background()))
	require.True(t, a.shutdown && b.shutdown)
}

func TestCompositeExporterStopsAtFirstError(t *testing.T) {
	a, b := &mockSpanExporter{fail: true}, &mockSpanExporter{}
	composite := newCompositeExporter(a, b)

	require.Error(t, composite.ExportSpans(context.Background(), nil))
	require.False(t, b.exported)
	require.Error(t, composite.Shutdown(context.Background()))
	require.False(t, b.shutdown)
}
