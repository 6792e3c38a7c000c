package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ValidationTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "linkgate_validation_total",
			Help: "Number of dependency-graph validations performed.",
		},
	)
	EdgeOutcomeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkgate_edge_outcome_total",
			Help: "Number of evaluated dependency edges by outcome severity.",
		},
		[]string{"outcome"},
	)

	ValidationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "linkgate_validation_duration_seconds",
			Help:    "Time taken to validate a dependency graph.",
			Buckets: prometheus.DefBuckets,
		},
	)

	SwapTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkgate_hotswap_total",
			Help: "Number of hot-swap attempts by result.",
		},
		[]string{"result"},
	)
	SwapDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "linkgate_hotswap_duration_seconds",
			Help:    "Time taken for a hot-swap attempt, drain wait included.",
			Buckets: prometheus.DefBuckets,
		},
	)

	TelemetryDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "linkgate_etps_dropped_total",
			Help: "Total telemetry events dropped due to queue saturation.",
		},
	)
	TelemetryQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "linkgate_etps_queue_depth",
			Help: "Telemetry events currently waiting for sink delivery.",
		},
	)
	TelemetryDeliveryErrorTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "linkgate_etps_delivery_error_total",
			Help: "Total telemetry events the sink failed to accept.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ValidationTotal,
		EdgeOutcomeTotal,
		ValidationDuration,
		SwapTotal,
		SwapDuration,
		TelemetryDroppedTotal,
		TelemetryQueueDepth,
		TelemetryDeliveryErrorTotal,
	)
}
