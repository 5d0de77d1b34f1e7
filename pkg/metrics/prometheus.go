package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datamorph_runs_total",
			Help: "Total number of runs by terminal status",
		},
		[]string{"status"},
	)

	ActiveRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "datamorph_active_runs",
			Help: "Number of runs currently being orchestrated",
		},
	)

	PhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datamorph_phase_duration_seconds",
			Help:    "Pipeline phase duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 15),
		},
		[]string{"phase"},
	)

	RemediationIterations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "datamorph_remediation_iterations_total",
			Help: "Total number of remediation iterations across all runs",
		},
	)

	LogAppendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datamorph_log_appends_total",
			Help: "Total log entries appended by type",
		},
		[]string{"type"},
	)
)
