package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for prediction attempts.
type Metrics struct {
	Predictions     *prometheus.CounterVec   // labels: hazard, outcome={success,server_error,unrecognized,transport_error}
	InputRejections *prometheus.CounterVec   // labels: hazard, reason={malformed,not_array,empty_input,...}
	RequestDuration *prometheus.HistogramVec // labels: hazard
	InFlight        prometheus.Gauge
	StaleResponses  prometheus.Counter
	LastProbability *prometheus.GaugeVec // labels: hazard

	// Prediction cache metrics.
	CacheLookups *prometheus.CounterVec // labels: result={hit,miss}

	// Event publishing metrics.
	EventsPublished    prometheus.Counter
	EventPublishErrors prometheus.Counter
}

const namespace = "hazard_predict"

func newMetrics() *Metrics {
	return &Metrics{
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Resolved prediction attempts by hazard and outcome.",
		}, []string{"hazard", "outcome"}),
		InputRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "input_rejections_total",
			Help:      "Inputs rejected before any request, by hazard and reason.",
		}, []string{"hazard", "reason"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Prediction endpoint round-trip duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"hazard"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "1 while a prediction request is awaiting a response.",
		}),
		StaleResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_total",
			Help:      "Responses discarded because a newer attempt or hazard switch superseded them.",
		}),
		LastProbability: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_probability",
			Help:      "Most recent successful probability per hazard.",
		}, []string{"hazard"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Prediction cache lookups by result.",
		}, []string{"result"}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Prediction events written to the result topic.",
		}),
		EventPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_errors_total",
			Help:      "Prediction events that failed to publish.",
		}),
	}
}

// NewMetrics creates and registers all prediction metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.Predictions,
		m.InputRejections,
		m.RequestDuration,
		m.InFlight,
		m.StaleResponses,
		m.LastProbability,
		m.CacheLookups,
		m.EventsPublished,
		m.EventPublishErrors,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
