package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BookingTransitions The total number of booking attempt step transitions (counter)
	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tours",
			Name:      "booking_transitions_total",
			Help:      "The total number of booking attempt step transitions",
		},
		[]string{"from", "to"},
	)

	// BookingFlowErrors The total number of inline errors shown in a booking step (counter)
	BookingFlowErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tours",
			Name:      "booking_flow_errors_total",
			Help:      "The total number of errors shown to the tourist, by step and kind",
		},
		[]string{"step", "kind"},
	)

	// BookingAttemptsStarted The total number of started booking attempts (counter)
	BookingAttemptsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tours",
			Name:      "booking_attempts_started_total",
			Help:      "The total number of started booking attempts",
		},
	)

	// BookingAttemptsAbandoned The total number of attempts closed before success (counter)
	BookingAttemptsAbandoned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tours",
			Name:      "booking_attempts_abandoned_total",
			Help:      "The total number of booking attempts closed before success",
		},
		[]string{"step"},
	)

	// SettlementFailuresPending Failed settlements waiting for an operator (gauge)
	SettlementFailuresPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tours",
			Name:      "settlement_failures_pending",
			Help:      "The number of payment intents charged by the processor but not settled, waiting for reconciliation",
		},
	)

	// MessagesProcessed The total number of processed messages (counter)
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messages",
			Name:      "processed_total",
			Help:      "The total number of processed messages",
		},
		[]string{"topic", "handler"},
	)

	// MessagesProcessingFailed total number of message processing failures (counter)
	MessagesProcessingFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messages",
			Name:      "processing_failed_total",
			Help:      "The total number of message processing failures",
		},
		[]string{"topic", "handler"},
	)

	// MessagesProcessingDuration The total time spent processing messages (summary with quantiles 0.5, 0.9, and 0.99)
	MessagesProcessingDuration = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace:  "messages",
			Name:       "processing_duration_seconds",
			Help:       "The total time spent processing messages",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"topic", "handler"},
	)
)
