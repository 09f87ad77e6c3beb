package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ridehail"

var (
	SessionsConnected = promauto.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "sessions_connected", Help: "Number of live realtime sessions"})
	RidersAvailable   = promauto.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "riders_available", Help: "Number of sessions in the available pool"})
	SessionsReplaced  = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "sessions_replaced_total", Help: "Sessions displaced by a newer connection of the same actor"})

	RidesRequested  = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "rides_requested_total", Help: "Total ride requests created"})
	AcceptConflicts = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "accept_conflicts_total", Help: "Accept attempts that lost the race or hit a non-requested ride"})

	RideTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "ride_transitions_total", Help: "Applied ride status transitions"},
		[]string{"from", "to"},
	)
	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "broadcasts_total", Help: "Realtime deliveries by event and outcome"},
		[]string{"event", "outcome"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Delivery outcomes.
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
)
