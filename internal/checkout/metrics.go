package checkout

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront/internal/apperr"
)

var meter = otel.Meter("checkout")

type metrics struct {
	attempts             metric.Int64Counter
	allocationRetries    metric.Int64Counter
	notificationFailures metric.Int64Counter
}

func newMetrics() (*metrics, error) {
	attempts, err := meter.Int64Counter("checkout.attempts",
		metric.WithDescription("Checkout attempts by outcome"),
	)
	if err != nil {
		return nil, err
	}
	retries, err := meter.Int64Counter("checkout.allocation_retries",
		metric.WithDescription("Checkouts replayed after losing an order number race"),
	)
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("checkout.notification_failures",
		metric.WithDescription("Order notifications that could not be delivered"),
	)
	if err != nil {
		return nil, err
	}
	return &metrics{attempts: attempts, allocationRetries: retries, notificationFailures: failures}, nil
}

func (m *metrics) recordAttempt(ctx context.Context, err error) {
	outcome := "success"
	if err != nil {
		outcome = string(apperr.KindOf(err))
	}
	m.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
