package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "banking_http_requests_total",
		Help: "Total number of HTTP requests processed",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "banking_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "path"})
)

// Ledger operation metrics
var (
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "banking_operations_total",
		Help: "Ledger operations by kind and outcome",
	}, []string{"operation", "outcome"})

	OperationRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "banking_operation_retries_total",
		Help: "Retries performed due to version conflicts",
	}, []string{"operation"})

	ConcurrencyConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "banking_concurrency_conflicts_total",
		Help: "Version conflicts hit while updating account balances",
	})

	IdempotentReplaysTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "banking_idempotent_replays_total",
		Help: "Requests answered from stored idempotency records",
	}, []string{"operation"})
)

// Reconciliation metrics
var (
	ReconciliationChecksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "banking_reconciliation_checks_total",
		Help: "Accounts checked by the reconciler",
	})

	ReconciliationMismatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "banking_reconciliation_mismatches_total",
		Help: "Accounts whose cached balance diverged from the ledger",
	})
)

// Bulk processing metrics
var (
	BulkRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "banking_bulk_rows_total",
		Help: "Bulk file rows processed by outcome",
	}, []string{"outcome"})

	BulkFilesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "banking_bulk_files_total",
		Help: "Bulk files accepted for processing",
	})
)

// Infrastructure metrics
var (
	DatabaseConnectionsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "banking_database_connections",
		Help: "Database connection pool state",
	}, []string{"state"})

	IdempotencyRecordsPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "banking_idempotency_records_purged_total",
		Help: "Expired idempotency records removed by the cleanup worker",
	})
)

// Outcome label values shared by operation counters
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeReplayed = "replayed"
)
