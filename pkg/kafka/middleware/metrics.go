package kafka_middleware

import (
	"context"

	"haulbid/pkg/kafka"
	"haulbid/pkg/metrics"
)

// MetricsProducerMiddleware counts publish outcomes on the service's
// Prometheus metrics.
func MetricsProducerMiddleware(m *metrics.Metrics) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		err := next(ctx, msg)
		if err != nil {
			m.NotificationsFailed.Inc()
		} else {
			m.NotificationsSent.Inc()
		}
		return err
	}
}
