package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	analysisResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelscan_analysis_results_total",
			Help: "Analyzed labels by category and risk level",
		},
		[]string{"category", "risk"},
	)

	analysisMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelscan_analysis_matches_total",
			Help: "Reported conflicts by kind and canonical term",
		},
		[]string{"kind", "term"},
	)
)
