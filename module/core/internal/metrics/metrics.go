// Package metrics exposes Prometheus collectors for ingestion, geofence
// evaluation and alert delivery.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "safezone"

// Registry is the dedicated registry served on /metrics.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// FixesTotal counts ingested fixes by result.
	FixesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "fixes_total",
			Help:      "Location fixes received, by result.",
		},
		[]string{"source", "result"},
	)

	// TransitionsTotal counts alert_sent transitions.
	TransitionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "geofence",
			Name:      "transitions_total",
			Help:      "Safe zone flag transitions, by kind.",
		},
		[]string{"kind"},
	)

	EvaluationDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "geofence",
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent evaluating one fix against an entity's zones.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// EmissionsTotal counts alert fan-out attempts by channel and status.
	EmissionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "emissions_total",
			Help:      "Alert deliveries, by channel and status.",
		},
		[]string{"channel", "status"},
	)

	// RealtimeConnections tracks open websocket streams.
	RealtimeConnections = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Open realtime websocket connections.",
		},
	)
)

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
