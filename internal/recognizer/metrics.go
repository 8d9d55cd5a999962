package recognizer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	engineReconfigurations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "labelscan_engine_reconfigurations_total",
			Help: "Number of recognition engine language switches",
		},
	)

	engineRecognizeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "labelscan_engine_recognize_duration_seconds",
			Help:    "Duration of a single backend recognition call",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
)
