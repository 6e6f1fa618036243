package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	routeCreateOrder = "/orders"

	ordersSpanName    = "poshub.orders.request"
	ordersEventName   = "orders.request.metrics"
	ordersEventDomain = "poshub"
	tracerName        = "poshub-api/api"
)

type orderRequestMetrics struct {
	logger *log.Logger
	span   trace.Span
	start  time.Time
	route  string

	authDuration   time.Duration
	createDuration time.Duration
	errorStage     string
}

func newOrderRequestMetrics(ctx context.Context, logger *log.Logger, route string) (*orderRequestMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, ordersSpanName)
	return &orderRequestMetrics{
		logger: logger,
		span:   span,
		start:  time.Now(),
		route:  route,
	}, spanCtx
}

func (m *orderRequestMetrics) ObserveAuth(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.authDuration = duration
}

func (m *orderRequestMetrics) ObserveCreate(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.createDuration = duration
}

func (m *orderRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Log ends the request span and emits one observability event summarizing the
// request.
func (m *orderRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("http.route", m.route),
		attribute.Int("http.status_code", status),
		attribute.Float64("poshub.orders.total_ms", durationToMillis(time.Since(m.start))),
	}
	if m.authDuration > 0 {
		attrs = append(attrs, attribute.Float64("poshub.orders.auth_ms", durationToMillis(m.authDuration)))
	}
	if m.createDuration > 0 {
		attrs = append(attrs, attribute.Float64("poshub.orders.create_ms", durationToMillis(m.createDuration)))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("poshub.orders.error_stage", m.errorStage))
	}

	if m.span != nil {
		m.span.SetAttributes(attrs...)
		if err != nil {
			m.span.RecordError(err)
			m.span.SetStatus(codes.Error, err.Error())
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}

	fields := log.Fields{
		"event.name":      ordersEventName,
		"event.domain":    ordersEventDomain,
		"severity_text":   "INFO",
		"severity_number": 9,
		"attributes":      attributesToFields(attrs),
	}
	if m.span != nil {
		if sc := m.span.SpanContext(); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
		}
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	m.logger.WithFields(fields).Info("observability.event")
}

func attributesToFields(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
