package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "acciguard"

// Prediction sources.
const (
	SourceForm   = "form"
	SourceUpload = "upload"
	SourceMQTT   = "mqtt"
)

// Failure stages.
const (
	StageValidate = "validate"
	StageStore    = "store"
	StagePublish  = "publish"
)

// Metrics holds the Prometheus collectors of the API process.
type Metrics struct {
	PredictionsScored    *prometheus.CounterVec // labels: source
	PredictionsStored    prometheus.Counter
	PredictionsPublished prometheus.Counter
	PredictionsFailed    *prometheus.CounterVec // labels: stage
	RiskScore            prometheus.Histogram
	RiskLevel            *prometheus.CounterVec // labels: level

	BatchSize     prometheus.Histogram
	LiveClients   prometheus.Gauge
	EventsDropped prometheus.Counter

	RequestDuration *prometheus.HistogramVec // labels: method, route, status
}

// New creates the collectors and registers them with reg. Tests pass a
// fresh prometheus.NewRegistry to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PredictionsScored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_scored_total",
			Help:      "Total number of inputs scored, by source.",
		}, []string{"source"}),
		PredictionsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_stored_total",
			Help:      "Total number of predictions persisted.",
		}),
		PredictionsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_published_total",
			Help:      "Total number of predictions broadcast to subscribers.",
		}),
		PredictionsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_failed_total",
			Help:      "Total number of prediction failures, by stage.",
		}, []string{"stage"}),
		RiskScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "risk_score",
			Help:      "Distribution of computed risk scores.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		RiskLevel: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_level_total",
			Help:      "Total number of predictions by risk level.",
		}, []string{"level"}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of records per uploaded file or MQTT message.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		}),
		LiveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_clients",
			Help:      "Number of connected websocket clients.",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_events_dropped_total",
			Help:      "Events not delivered to a slow live subscriber.",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		m.PredictionsScored,
		m.PredictionsStored,
		m.PredictionsPublished,
		m.PredictionsFailed,
		m.RiskScore,
		m.RiskLevel,
		m.BatchSize,
		m.LiveClients,
		m.EventsDropped,
		m.RequestDuration,
	)
	return m
}

// RegisterHubSubscribers exports the subscriber count of the in-process
// broadcast hub.
func RegisterHubSubscribers(reg prometheus.Registerer, count func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "hub_subscribers",
		Help:      "Subscribers attached to the in-process broadcast hub.",
	}, func() float64 {
		return float64(count())
	}))
}

// NewForTesting returns Metrics bound to a throwaway registry.
func NewForTesting() *Metrics {
	return New(prometheus.NewRegistry())
}
