package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics for the finalizer.
type Metrics struct {
	BookingsFinalized   prometheus.Counter
	BookingsNoBids      prometheus.Counter
	FinalizeErrors      prometheus.Counter
	LockContention      prometheus.Counter
	TickDuration        prometheus.Histogram
	NotificationsSent   prometheus.Counter
	NotificationsFailed prometheus.Counter
}

// NewMetrics creates new prometheus metrics registered on the default
// registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith registers the metrics on the given registerer. Tests
// pass a fresh registry so independent services don't collide.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BookingsFinalized: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_finalized_total",
			Help:      "The total number of bookings finalized into shipments",
		}),
		BookingsNoBids: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_no_bids_total",
			Help:      "The total number of bookings closed without a valid bid",
		}),
		FinalizeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "finalize_errors_total",
			Help:      "The total number of failed finalization attempts",
		}),
		LockContention: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_contention_total",
			Help:      "The total number of bookings skipped because another worker held the lock",
		}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time taken to process one scheduler tick",
			Buckets:   prometheus.DefBuckets,
		}),
		NotificationsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "The total number of notifications published",
		}),
		NotificationsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "The total number of notification publishes that failed",
		}),
	}
}
