package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "tutor", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "tutor", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	// StoreOperations counts document store calls by backend, operation (fetch|put) and
	// outcome (ok|absent|conflict|unavailable|invalid).
	StoreOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "tutor", Name: "store_operations_total", Help: "Document store operations by backend, operation and outcome."},
		[]string{"backend", "op", "outcome"},
	)
	StoreLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "tutor", Name: "store_operation_seconds", Help: "Document store call latency.", Buckets: prometheus.DefBuckets},
		[]string{"backend", "op"},
	)
	PaymentsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "tutor", Name: "payments_recorded_total", Help: "Payment status updates by result."},
		[]string{"result"},
	)
	LessonsReconciled = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "tutor", Name: "lessons_reconciled_total", Help: "Lessons returned by the reconciler."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(StoreOperations)
	reg.MustRegister(StoreLatency)
	reg.MustRegister(PaymentsRecorded)
	reg.MustRegister(LessonsReconciled)
}
