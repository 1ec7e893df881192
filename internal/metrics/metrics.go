package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fraudscore_requests_enqueued_total",
		Help: "Total number of scoring requests placed on the processing queue.",
	})

	RequestsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fraudscore_requests_dropped_total",
		Help: "Total number of scoring requests rejected due to a full queue.",
	})

	Predictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraudscore_predictions_total",
		Help: "Total number of scored transactions, labelled by fraud label.",
	}, []string{"label"})

	ScoringErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraudscore_scoring_errors_total",
		Help: "Total number of failed scoring requests, labelled by error kind.",
	}, []string{"kind"})

	ScoringDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fraudscore_scoring_duration_ms",
		Help:    "Feature construction plus inference latency in milliseconds.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
	})

	GeoLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraudscore_geo_lookups_total",
		Help: "Country resolutions, labelled by source and outcome.",
	}, []string{"source", "outcome"})

	GeoCoverage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fraudscore_geo_join_coverage_ratio",
		Help: "Fraction of rows resolved to a country by the last batch IP join (0–1).",
	})

	ModelLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fraudscore_model_loaded",
		Help: "1 when a model and encoder registry are loaded, 0 otherwise.",
	})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fraudscore_queue_utilization_ratio",
		Help: "Current scoring queue utilization (0–1).",
	})
)
