package usecase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics
var (
	intentsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan2pay_intents_created_total",
			Help: "Payment intents by creation result",
		},
		[]string{"result"},
	)

	callbacksResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan2pay_callbacks_resolved_total",
			Help: "Intent resolutions by kind (applied, duplicate, unknown, invalid)",
		},
		[]string{"resolution", "status"},
	)

	withdrawalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan2pay_withdrawals_total",
			Help: "Withdrawals by result",
		},
		[]string{"result"},
	)

	intentsExpired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan2pay_intents_expired_total",
			Help: "Expired intents by how they were settled",
		},
		[]string{"source"},
	)

	conflictRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan2pay_conflict_retries_total",
			Help: "Store transactions retried after a concurrent update conflict",
		},
		[]string{"operation"},
	)

	eventPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scan2pay_event_publish_errors_total",
			Help: "Ledger events that could not be published",
		},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scan2pay_usecase_duration_seconds",
			Help:    "Duration of usecase operations",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5, 15},
		},
		[]string{"operation"},
	)
)
