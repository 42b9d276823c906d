package settlement

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/Alijeyrad/simorq_settlement/internal/settlement"

var tracer trace.Tracer = otel.Tracer(instrumentationName)

type metrics struct {
	outcomes  metric.Int64Counter
	rollbacks metric.Int64Counter
	duration  metric.Float64Histogram
	effects   metric.Int64Counter
}

func newMetrics() *metrics {
	meter := otel.Meter(instrumentationName)

	outcomes, _ := meter.Int64Counter("settlement_outcomes_total",
		metric.WithDescription("Settlement attempts by outcome kind"))
	rollbacks, _ := meter.Int64Counter("settlement_rollbacks_total",
		metric.WithDescription("Compensating reversals by result"))
	duration, _ := meter.Float64Histogram("settlement_duration_ms",
		metric.WithDescription("Settlement latency up to the caller's result"),
		metric.WithUnit("ms"))
	effects, _ := meter.Int64Counter("settlement_side_effects_total",
		metric.WithDescription("Side-effect recorder runs by recorder and result"))

	return &metrics{outcomes: outcomes, rollbacks: rollbacks, duration: duration, effects: effects}
}

func (m *metrics) outcome(ctx context.Context, kind string, started time.Time) {
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	m.outcomes.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(time.Since(started).Microseconds())/1000, attrs)
}

func (m *metrics) rollback(ctx context.Context, result string) {
	m.rollbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *metrics) effect(ctx context.Context, recorder, result string) {
	m.effects.Add(ctx, 1, metric.WithAttributes(
		attribute.String("recorder", recorder),
		attribute.String("result", result),
	))
}
