package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/invoicing/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// setupTestTracer installs an in-memory span recorder as the global provider
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value
	}
	return m
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	ctx, span := telemetry.StartServiceSpan(context.Background(), "ledger", "collect_payment")
	require.NotNil(t, span)
	assert.True(t, trace.SpanFromContext(ctx).SpanContext().IsValid())
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "ledger.collect_payment", spans[0].Name())
	assert.Equal(t, trace.SpanKindInternal, spans[0].SpanKind())
}

func TestServiceSpansNest(t *testing.T) {
	sr := setupTestTracer(t)

	ctx, parent := telemetry.StartServiceSpan(context.Background(), "artifact", "ensure")
	_, child := telemetry.StartServiceSpan(ctx, "regeneration", "regenerate")
	child.End()
	parent.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, spans[1].SpanContext().TraceID(), spans[0].SpanContext().TraceID())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
}

func TestSetAttributes(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "artifact", "get_view")
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, int64(42),
		telemetry.SpanAttrItemCount, 3,
		telemetry.SpanAttrAmount, decimal.RequireFromString("1168.256"),
		telemetry.SpanAttrQuality, "RESOLVED",
		99, "non-string key is skipped",
		"dangling",
	)
	span.End()

	attrs := attrMap(sr.Ended()[0].Attributes())
	assert.Len(t, attrs, 4)
	assert.Equal(t, int64(42), attrs[telemetry.SpanAttrInvoiceID].AsInt64())
	assert.Equal(t, int64(3), attrs[telemetry.SpanAttrItemCount].AsInt64())
	assert.Equal(t, "1168.26", attrs[telemetry.SpanAttrAmount].AsString())
	assert.Equal(t, "RESOLVED", attrs[telemetry.SpanAttrQuality].AsString())
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "ledger", "collect_payment")
	telemetry.RecordError(span, errors.New("amount exceeds outstanding balance"))
	span.End()

	s := sr.Ended()[0]
	assert.Equal(t, codes.Error, s.Status().Code)
	assert.Equal(t, "amount exceeds outstanding balance", s.Status().Description)
	require.Len(t, s.Events(), 1)
	assert.Equal(t, "exception", s.Events()[0].Name)
}

func TestRecordError_NilErrorLeavesStatusUnset(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "ledger", "list_payments")
	telemetry.RecordError(span, nil)
	span.End()

	assert.Equal(t, codes.Unset, sr.Ended()[0].Status().Code)
}

func TestAddEvent(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "ledger", "collect_payment")
	telemetry.AddEvent(span, "payment_collected",
		"payment_id", int64(7),
		"balance_after", "1168.26",
	)
	span.End()

	events := sr.Ended()[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "payment_collected", events[0].Name)
	attrs := attrMap(events[0].Attributes)
	assert.Equal(t, int64(7), attrs["payment_id"].AsInt64())
	assert.Equal(t, "1168.26", attrs["balance_after"].AsString())
}

func TestHelpersTolerateNilSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.SetAttributes(nil, "key", "value")
		telemetry.RecordError(nil, errors.New("x"))
		telemetry.AddEvent(nil, "event", "key", "value")
	})
}
