package oteladapters_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/libris-io/libris/libstore/oteladapters"
)

func newTestTracer() (*oteladapters.TracingCollector, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	return oteladapters.NewTracingCollector(provider.Tracer("test")), recorder
}

func Test_TracingCollector_StartAndFinishSpan(t *testing.T) {
	// arrange
	collector, recorder := newTestTracer()

	// act
	ctx, span := collector.StartSpan(context.Background(),
		"libstore.conditional_decrement_copies",
		map[string]string{"operation": "conditional_decrement_copies"})
	collector.FinishSpan(span, "success", map[string]string{"rows": "1"})

	// assert
	assert.NotNil(t, ctx)

	ended := recorder.Ended()
	require.Len(t, ended, 1)

	recorded := ended[0]
	assert.Equal(t, "libstore.conditional_decrement_copies", recorded.Name())
	assert.Equal(t, codes.Ok, recorded.Status().Code)
	assert.Contains(t, recorded.Attributes(),
		attribute.String("operation", "conditional_decrement_copies"))
	assert.Contains(t, recorded.Attributes(), attribute.String("rows", "1"))
}

func Test_TracingCollector_FinishSpan_MapsErrorStatuses(t *testing.T) {
	for _, status := range []string{"error", "timeout", "conflict", "cancelled"} {
		t.Run(status, func(t *testing.T) {
			// arrange
			collector, recorder := newTestTracer()

			// act
			_, span := collector.StartSpan(context.Background(), "libstore.test", nil)
			collector.FinishSpan(span, status, nil)

			// assert
			ended := recorder.Ended()
			require.Len(t, ended, 1)
			assert.Equal(t, codes.Error, ended[0].Status().Code)
		})
	}
}

func Test_TracingCollector_FinishSpan_IgnoresForeignSpanContext(t *testing.T) {
	// arrange
	collector, recorder := newTestTracer()

	// act
	assert.NotPanics(t, func() {
		collector.FinishSpan(nil, "success", nil)
	})

	// assert
	assert.Empty(t, recorder.Ended())
}

func Test_OTelSpanContext_AddAttribute(t *testing.T) {
	// arrange
	collector, recorder := newTestTracer()
	_, span := collector.StartSpan(context.Background(), "libstore.test", nil)

	// act
	span.AddAttribute("guard", "copies_available")
	span.SetStatus("success")
	collector.FinishSpan(span, "success", nil)

	// assert
	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Contains(t, ended[0].Attributes(), attribute.String("guard", "copies_available"))
}
