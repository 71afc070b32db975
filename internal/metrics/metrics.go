package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	PaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_transactions_total",
			Help: "Total number of processed payment transactions by outcome",
		},
		[]string{"outcome"},
	)

	AccountsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_accounts_created_total",
			Help: "Total number of accounts created on first payment",
		},
	)

	LockTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_lock_timeouts_total",
			Help: "Total number of balance updates aborted on lock timeout",
		},
	)
)

// Outcome labels for PaymentsTotal.
const (
	OutcomeCompleted        = "completed"
	OutcomeInvalidSignature = "invalid_signature"
	OutcomeDuplicate        = "duplicate"
	OutcomeLockTimeout      = "lock_timeout"
	OutcomeError            = "error"
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordPayment(outcome string) {
	PaymentsTotal.WithLabelValues(outcome).Inc()
}

func RecordAccountCreated() {
	AccountsCreatedTotal.Inc()
}

func RecordLockTimeout() {
	LockTimeoutsTotal.Inc()
}
