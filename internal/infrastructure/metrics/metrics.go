package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the bookkeeping service.
type Metrics struct {
	// Order metrics
	OrdersCreated   prometheus.Counter
	OrdersCompleted prometheus.Counter
	OrdersBreached  prometheus.Counter
	OrderAmount     prometheus.Histogram

	// Payment metrics
	PaymentsRecorded *prometheus.CounterVec
	PaymentAmount    *prometheus.HistogramVec

	// Undo metrics
	UndosPerformed *prometheus.CounterVec
	UndosRejected  *prometheus.CounterVec

	// Snapshot metrics
	SnapshotRebuilds  prometheus.Counter
	ConsistencyChecks *prometheus.CounterVec

	// Database metrics
	DBConnections prometheus.Gauge
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		OrdersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loanbook_orders_created_total",
			Help: "Total number of loan orders issued",
		}),
		OrdersCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loanbook_orders_completed_total",
			Help: "Total number of orders settled in full",
		}),
		OrdersBreached: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loanbook_orders_breached_total",
			Help: "Total number of orders moved to breach",
		}),
		OrderAmount: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "loanbook_order_amount",
			Help:    "Issued principal amounts",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000},
		}),

		PaymentsRecorded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loanbook_payments_recorded_total",
				Help: "Total payments booked by kind",
			},
			[]string{"kind"},
		),
		PaymentAmount: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loanbook_payment_amount",
				Help:    "Payment amounts by kind",
				Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000},
			},
			[]string{"kind"},
		),

		UndosPerformed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loanbook_undos_performed_total",
				Help: "Total operations unwound by undone type",
			},
			[]string{"type"},
		),
		UndosRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loanbook_undos_rejected_total",
				Help: "Total undo attempts rejected by reason",
			},
			[]string{"reason"},
		),

		SnapshotRebuilds: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loanbook_snapshot_rebuilds_total",
			Help: "Total snapshot rebuilds from the logs",
		}),
		ConsistencyChecks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loanbook_consistency_checks_total",
				Help: "Total consistency checks by outcome",
			},
			[]string{"outcome"},
		),
		DBConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "loanbook_db_connections",
			Help: "Current number of database connections",
		}),
	}
}
