package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("tracer shutdown: %v", err)
		}
	})
	return exporter
}

func attributesToMap(span tracetest.SpanStub) map[string]any {
	out := make(map[string]any, len(span.Attributes))
	for _, kv := range span.Attributes {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func TestOrderRequestMetricsSuccess(t *testing.T) {
	exporter := setupTestTracer(t)
	logger, hook := test.NewNullLogger()

	metrics, spanCtx := newOrderRequestMetrics(context.Background(), logger, routeCreateOrder)
	if spanCtx == nil {
		t.Fatalf("expected a span context")
	}
	metrics.ObserveAuth(3 * time.Millisecond)
	metrics.ObserveCreate(5 * time.Millisecond)
	metrics.Log(201, nil)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name != ordersSpanName {
		t.Fatalf("unexpected span name: %s", span.Name)
	}
	attrs := attributesToMap(span)
	if attrs["http.route"] != routeCreateOrder {
		t.Fatalf("unexpected route attribute: %v", attrs["http.route"])
	}
	if attrs["http.status_code"] != int64(201) {
		t.Fatalf("unexpected status attribute: %v", attrs["http.status_code"])
	}
	if attrs["poshub.orders.auth_ms"] != 3.0 {
		t.Fatalf("unexpected auth duration: %v", attrs["poshub.orders.auth_ms"])
	}
	if attrs["poshub.orders.create_ms"] != 5.0 {
		t.Fatalf("unexpected create duration: %v", attrs["poshub.orders.create_ms"])
	}
	if _, present := attrs["poshub.orders.error_stage"]; present {
		t.Fatalf("no error stage expected on success")
	}

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatalf("expected an observability event")
	}
	if entry.Message != "observability.event" {
		t.Fatalf("unexpected message: %s", entry.Message)
	}
	if entry.Data["event.name"] != ordersEventName {
		t.Fatalf("unexpected event name: %v", entry.Data["event.name"])
	}
	if entry.Data["event.domain"] != ordersEventDomain {
		t.Fatalf("unexpected event domain: %v", entry.Data["event.domain"])
	}
	traceID, _ := entry.Data["trace_id"].(string)
	if traceID == "" {
		t.Fatalf("expected trace id on the event")
	}
	if traceID != span.SpanContext.TraceID().String() {
		t.Fatalf("event trace id %s does not match span %s", traceID, span.SpanContext.TraceID())
	}
	eventAttrs, ok := entry.Data["attributes"].(map[string]any)
	if !ok {
		t.Fatalf("expected attributes map, got %T", entry.Data["attributes"])
	}
	if eventAttrs["http.route"] != routeCreateOrder {
		t.Fatalf("unexpected event route: %v", eventAttrs["http.route"])
	}
}

func TestOrderRequestMetricsFailure(t *testing.T) {
	setupTestTracer(t)
	logger, hook := test.NewNullLogger()

	metrics, _ := newOrderRequestMetrics(context.Background(), logger, routeCreateOrder)
	metrics.SetErrorStage("validation")
	metrics.Log(422, errors.New("amount must be positive"))

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatalf("expected an observability event")
	}
	if entry.Data["error"] != "amount must be positive" {
		t.Fatalf("unexpected error field: %v", entry.Data["error"])
	}
	eventAttrs, ok := entry.Data["attributes"].(map[string]any)
	if !ok {
		t.Fatalf("expected attributes map, got %T", entry.Data["attributes"])
	}
	if eventAttrs["poshub.orders.error_stage"] != "validation" {
		t.Fatalf("unexpected error stage: %v", eventAttrs["poshub.orders.error_stage"])
	}
}

func TestOrderRequestMetricsNilLogger(t *testing.T) {
	setupTestTracer(t)

	metrics, _ := newOrderRequestMetrics(context.Background(), nil, routeCreateOrder)
	// Must not panic without a logger.
	metrics.Log(500, errors.New("boom"))
}
