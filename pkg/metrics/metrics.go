package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Delivery worker metrics
	NotificationsDelivered prometheus.Counter
	NotificationsSkipped   *prometheus.CounterVec
	NotificationsFailed    prometheus.Counter
	DeliveryCycleDuration  prometheus.Histogram
	PendingQueueSize       prometheus.Gauge

	// Adherence scheduler metrics
	SchedulerTicks      *prometheus.CounterVec
	SchedulerTickErrors *prometheus.CounterVec
	RemindersCreated    prometheus.Counter
	MissedAlertsCreated prometheus.Counter
	EscalationsCreated  prometheus.Counter

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
	DatabaseLatency    *prometheus.HistogramVec
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		NotificationsDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notifications_delivered_total",
			Help:      "Total number of notifications delivered to the SMS transport",
		}),
		NotificationsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notifications_skipped_total",
			Help:      "Total number of notifications skipped without a transport call",
		}, []string{"reason"}),
		NotificationsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notifications_failed_total",
			Help:      "Total number of failed transport sends left for retry",
		}),
		DeliveryCycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "delivery_cycle_duration_seconds",
			Help:      "Time spent processing one delivery poll cycle",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		PendingQueueSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pending_notifications",
			Help:      "Number of unsent notifications fetched in the last poll",
		}),

		SchedulerTicks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scheduler_ticks_total",
			Help:      "Total number of scheduler task runs",
		}, []string{"task"}),
		SchedulerTickErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scheduler_tick_errors_total",
			Help:      "Total number of scheduler task runs that returned an error",
		}, []string{"task"}),
		RemindersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reminders_created_total",
			Help:      "Total number of dose reminder notifications created",
		}),
		MissedAlertsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "missed_alerts_created_total",
			Help:      "Total number of missed dose notifications created",
		}),
		EscalationsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "escalations_created_total",
			Help:      "Total number of emergency contact alerts created",
		}),

		DatabaseOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
		DatabaseLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operation_duration_seconds",
			Help:      "Duration of database operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
	}
}
