package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// Ledger
	CommitmentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_commitments_total",
			Help: "Total prediction commitments created",
		},
	)
	RollbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_rollbacks_total",
			Help: "Total commitment rollbacks",
		},
		[]string{"type"}, // manual|cancellation|compensation
	)
	ResolutionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_resolutions_total",
			Help: "Total markets resolved",
		},
	)
	PayoutTokensTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_payout_tokens_total",
			Help: "Total tokens paid out to winners",
		},
	)
	TxRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "store_tx_retries_total",
			Help: "Store transactions retried on optimistic conflict",
		},
	)
	TxFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "store_tx_failed_total",
			Help: "Store transactions failed after retry exhaustion",
		},
	)

	// Worker queue
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
)

// Handler serves the /metrics endpoint.
var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(CommitmentsTotal)
	prometheus.MustRegister(RollbacksTotal)
	prometheus.MustRegister(ResolutionsTotal)
	prometheus.MustRegister(PayoutTokensTotal)
	prometheus.MustRegister(TxRetries)
	prometheus.MustRegister(TxFailed)
	prometheus.MustRegister(WorkerQueueDepth)
}
