package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Message metrics are labelled by the topic and router handler that consumed the event.
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "travels",
			Subsystem: "messages",
			Name:      "processed_total",
			Help:      "Events handled by the router, successful or not",
		},
		[]string{"topic", "handler"},
	)

	MessagesProcessingFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "travels",
			Subsystem: "messages",
			Name:      "processing_failed_total",
			Help:      "Handler attempts that returned an error, retries included",
		},
		[]string{"topic", "handler"},
	)

	MessagesProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "travels",
			Subsystem: "messages",
			Name:      "processing_duration_seconds",
			Help:      "Time spent in a handler, a slow gateway refund shows up here",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"topic", "handler"},
	)
)

var (
	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "travels",
			Name:      "booking_transitions_total",
			Help:      "The total number of booking status transitions",
		},
		[]string{"from", "to"},
	)

	// GatewayResults counts gateway callbacks by outcome and by what happened to them
	// (applied, duplicate or rejected).
	GatewayResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "travels",
			Name:      "gateway_results_total",
			Help:      "The total number of gateway results received",
		},
		[]string{"outcome", "result"},
	)

	VersionConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "travels",
			Name:      "version_conflicts_total",
			Help:      "The total number of optimistic concurrency conflicts",
		},
		[]string{"entity"},
	)

	NotificationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "travels",
			Name:      "notifications_failed_total",
			Help:      "The total number of events that could not be published",
		},
		[]string{"event"},
	)
)
