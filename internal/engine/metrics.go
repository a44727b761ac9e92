package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/roach88/stockline/internal/domain"
)

var noopMeter = noop.NewMeterProvider().Meter(instrumentationName)

// instruments holds the engine's counters. Instrument creation errors fall
// back to no-op instruments; metrics never fail a mutation.
type instruments struct {
	mutations   metric.Int64Counter
	clamped     metric.Int64Counter
	alerts      metric.Int64Counter
	corrections metric.Int64Counter
}

func newInstruments(m metric.Meter) *instruments {
	return &instruments{
		mutations: counter(m, "stockline.mutations",
			"Committed line-entry reaction cycles", "{mutation}"),
		clamped: counter(m, "stockline.quantity.clamped",
			"Units absorbed by the zero floor on item quantity", "{unit}"),
		alerts: counter(m, "stockline.alerts.transitions",
			"Low-stock alert opens and resolves", "{transition}"),
		corrections: counter(m, "stockline.reconcile.corrections",
			"Document totals corrected by reconciliation", "{document}"),
	}
}

func counter(m metric.Meter, name, desc, unit string) metric.Int64Counter {
	c, err := m.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil {
		c, _ = noopMeter.Int64Counter(name)
	}
	return c
}

func (in *instruments) recordMutation(ctx context.Context, m domain.Mutation) {
	attrs := metric.WithAttributes(
		attribute.String("kind", string(m.Kind)),
		attribute.String("document_kind", string(m.DocumentKind)),
	)
	in.mutations.Add(ctx, 1, attrs)
	if m.Clamped > 0 {
		in.clamped.Add(ctx, m.Clamped, attrs)
	}
	if m.AlertTransition != domain.TransitionNone {
		in.alerts.Add(ctx, 1, metric.WithAttributes(attribute.String("transition", string(m.AlertTransition))))
	}
}
