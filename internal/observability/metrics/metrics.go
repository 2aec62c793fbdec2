// Package metrics exposes Prometheus collectors for the monitor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors bundles every metric the application records.
type Collectors struct {
	// OutboxDepth is the number of pending updates awaiting delivery.
	OutboxDepth prometheus.Gauge
	// NotificationsDelivered counts confirmed event deliveries.
	NotificationsDelivered prometheus.Counter
	// NotificationsDropped counts updates abandoned after the retry
	// budget.
	NotificationsDropped prometheus.Counter
	// CycleDuration observes evaluation cycle wall time.
	CycleDuration prometheus.Histogram
	// StreamsByStatus tracks how many streams hold each status.
	StreamsByStatus *prometheus.GaugeVec
	// ReadingsSkipped counts malformed or out-of-order readings.
	ReadingsSkipped prometheus.Counter
	// BucketsResampled counts fine-grained rows rewritten by the
	// compactor.
	BucketsResampled prometheus.Counter
}

// NewCollectors creates and registers all collectors on the given
// registerer.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		OutboxDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "streamwatch_outbox_depth",
			Help: "Number of pending status updates awaiting delivery.",
		}),
		NotificationsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamwatch_notifications_delivered_total",
			Help: "Status events confirmed delivered to the event service.",
		}),
		NotificationsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamwatch_notifications_dropped_total",
			Help: "Status events dropped after exhausting the retry budget.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "streamwatch_cycle_duration_seconds",
			Help:    "Wall time of one stream evaluation cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		StreamsByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "streamwatch_streams",
			Help: "Deployed streams currently holding each status.",
		}, []string{"status"}),
		ReadingsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamwatch_readings_skipped_total",
			Help: "Counter readings skipped as malformed or out of order.",
		}),
		BucketsResampled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamwatch_buckets_resampled_total",
			Help: "Fine-grained counter buckets rewritten by the compactor.",
		}),
	}
	reg.MustRegister(
		c.OutboxDepth,
		c.NotificationsDelivered,
		c.NotificationsDropped,
		c.CycleDuration,
		c.StreamsByStatus,
		c.ReadingsSkipped,
		c.BucketsResampled,
	)
	return c
}

// NewTestCollectors creates collectors on a private registry, for tests.
func NewTestCollectors() *Collectors {
	return NewCollectors(prometheus.NewRegistry())
}
