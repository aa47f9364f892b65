package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreRetries counts attempts of store operations that are retried after
	// a transient failure.
	StoreRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_retry_attempts_total",
			Help: "Store operation attempts that failed transiently and were retried",
		},
		[]string{"operation"},
	)

	// StoreFailures counts store operations that exhausted their retries.
	StoreFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_operations_failed_total",
			Help: "Store operations that failed after all retry attempts",
		},
		[]string{"operation"},
	)

	// Notifications counts real-time event publishes by outcome.
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Real-time notifications by channel and result",
		},
		[]string{"channel", "result"},
	)
)
