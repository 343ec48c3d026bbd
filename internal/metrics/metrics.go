package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsCreated counts jobs created by watchers, by direction and initial status
	JobsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_jobs_created_total",
			Help: "Total number of transfer jobs created",
		},
		[]string{"direction", "status"},
	)

	// JobsFinished counts jobs reaching a terminal status
	JobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_jobs_finished_total",
			Help: "Total number of transfer jobs that reached a terminal status",
		},
		[]string{"direction", "status", "verified_by"},
	)

	// JobRetries counts transient failures that rescheduled a job
	JobRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_job_retries_total",
			Help: "Total number of job retries scheduled",
		},
		[]string{"direction"},
	)

	// JobDuration tracks time from job creation to completion
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_job_duration_seconds",
			Help:    "Time from job creation to completion in seconds",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 900, 1800, 3600, 7200},
		},
		[]string{"direction"},
	)

	// ReconcileOutcomes counts reconciliation results
	ReconcileOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_reconcile_outcomes_total",
			Help: "Reconciliation outcomes by direction",
		},
		[]string{"direction", "outcome"},
	)

	// TransactionsSent counts transactions broadcast to each chain
	TransactionsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_transactions_sent_total",
			Help: "Total number of transactions sent",
		},
		[]string{"chain", "status"},
	)

	// EventsDetected counts source events seen by watchers
	EventsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_events_detected_total",
			Help: "Total number of bridge events detected",
		},
		[]string{"watcher"},
	)

	// LastScannedPosition tracks the last block or slot scanned by each watcher
	LastScannedPosition = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bridge_last_scanned_position",
			Help: "Last block or slot scanned by watcher",
		},
		[]string{"watcher"},
	)

	// QueueDepth tracks the number of jobs per status
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bridge_queue_jobs",
			Help: "Number of transfer jobs by status",
		},
		[]string{"status"},
	)

	// OperatingBalance tracks the relayer's fee balance per chain in native units
	OperatingBalance = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bridge_operating_balance",
			Help: "Relayer operating balance by chain in native units",
		},
		[]string{"chain"},
	)

	// Alert is 1 while the monitor reports an alert condition
	Alert = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bridge_alert",
			Help: "1 when failed jobs exist or an operating balance is low",
		},
	)

	// TickDuration tracks scheduler tick processing time
	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bridge_tick_duration_seconds",
			Help:    "Scheduler tick duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ErrorsTotal counts errors by component
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// GasUsed tracks gas used for unlock transactions
	GasUsed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bridge_gas_used",
			Help:    "Gas used for unlock transactions",
			Buckets: []float64{21000, 50000, 100000, 200000, 300000, 500000},
		},
	)
)
