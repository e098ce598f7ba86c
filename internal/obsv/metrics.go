package obsv

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActionsTotal counts every action attempt by kind and outcome (the
	// apierr.Kind string, or "ok").
	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustd_actions_total",
		Help: "Total number of signed actions processed",
	}, []string{"action", "outcome"})

	// TrustComputationDuration times a single idt()/penalty() evaluation.
	TrustComputationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trustd_trust_computation_duration_seconds",
		Help:    "Duration of idt/penalty graph evaluations",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
	}, []string{"op"})

	// HTTPRequestsTotal and HTTPRequestDuration are the request-path
	// metrics recorded by middleware.Metrics.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustd_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trustd_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// WSFeedSubscribers tracks the number of live /ws/idt connections.
	WSFeedSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trustd_wsfeed_subscribers",
		Help: "Current number of live /ws/idt subscribers",
	})
)

// RecordAction records the outcome of a single action pipeline run.
func RecordAction(action string, outcome string) {
	ActionsTotal.WithLabelValues(action, outcome).Inc()
}
