// Package metrics exposes Prometheus collectors for the state-synchronization engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "homesync"

// Pipeline metrics
var (
	// PipelineRequestsTotal counts remote calls by outcome (ok, session_expired, remote_error, network_error).
	PipelineRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_requests_total",
			Help:      "Remote calls issued through the request pipeline by outcome",
		},
		[]string{"outcome"},
	)

	PipelineRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_request_duration_seconds",
			Help:      "Remote call latency in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method"},
	)

	// SessionExpiriesTotal counts delivered expiry notifications, one per episode.
	SessionExpiriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_expiries_total",
			Help:      "Session expiry episodes signalled to subscribers",
		},
	)
)

// Optimistic mutation metrics
var (
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Optimistic mutations by entity kind, attribute and outcome",
		},
		[]string{"entity", "attribute", "outcome"},
	)

	MutationsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mutations_in_flight",
			Help:      "Optimistic mutations currently awaiting a server response",
		},
		[]string{"entity"},
	)
)

// ReconcileOperationsTotal counts association add/remove calls by status (ok, failed).
var ReconcileOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_operations_total",
		Help:      "Association create/delete calls issued by the reconciler",
	},
	[]string{"op", "status"},
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
