package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelscan_pipeline_runs_total",
			Help: "Recognition requests by outcome",
		},
		[]string{"outcome"}, // success, input_error, engine_error, cancelled
	)

	pipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "labelscan_pipeline_stage_duration_seconds",
			Help:    "Time spent in each recognition stage",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	pipelineROIMethod = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelscan_pipeline_roi_method_total",
			Help: "Selected region of interest by method",
		},
		[]string{"method"},
	)

	pipelineRotation = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelscan_pipeline_rotation_total",
			Help: "Chosen crop rotation in degrees",
		},
		[]string{"degrees"},
	)
)
