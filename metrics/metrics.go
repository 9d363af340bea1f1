// Package metrics exports Prometheus metrics for the session API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ospi"

// Prediction outcomes.
const (
	OutcomeSuccess      = "success"
	OutcomeInvalidModel = "invalid_model"
	OutcomeIncomplete   = "incomplete_session"
	OutcomeUnavailable  = "unavailable"
)

// Metrics holds the API's collectors. Each instance owns its registry so
// tests and multiple servers never collide.
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsCreated prometheus.Counter
	SessionsClosed  prometheus.Counter
	EventsApplied   *prometheus.CounterVec
	EventsIgnored   prometheus.Counter

	// Prediction metrics
	Predictions        *prometheus.CounterVec
	PredictionDuration prometheus.Histogram

	// Event log metrics
	EventsRecorded prometheus.Counter
	RecordFailures prometheus.Counter
}

// New registers all collectors on a fresh registry, including the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{registry: reg}
	initSessionMetrics(m, promauto.With(reg))
	initPredictionMetrics(m, promauto.With(reg))
	initEventLogMetrics(m, promauto.With(reg))
	return m
}

func initSessionMetrics(m *Metrics, f promauto.Factory) {
	m.SessionsCreated = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_created_total",
		Help:      "Total browsing sessions created",
	})

	m.SessionsClosed = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_closed_total",
		Help:      "Total browsing sessions ended by the client or expired",
	})

	m.EventsApplied = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_events_applied_total",
		Help:      "Total session events applied, by kind",
	}, []string{"kind"})

	m.EventsIgnored = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_events_ignored_total",
		Help:      "Total submitted events with an unknown type or missing payload",
	})
}

func initPredictionMetrics(m *Metrics, f promauto.Factory) {
	m.Predictions = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "predictions_total",
		Help:      "Total prediction requests, by model and outcome",
	}, []string{"model", "outcome"})

	m.PredictionDuration = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "prediction_duration_seconds",
		Help:      "Round trip time to the prediction service",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})
}

func initEventLogMetrics(m *Metrics, f promauto.Factory) {
	m.EventsRecorded = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_log_recorded_total",
		Help:      "Total events written to the analytics event log",
	})

	m.RecordFailures = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_log_failures_total",
		Help:      "Total failed event log batches",
	})
}

// ObservePrediction records one prediction attempt.
func (m *Metrics) ObservePrediction(model, outcome string, elapsed time.Duration) {
	m.Predictions.WithLabelValues(model, outcome).Inc()
	if outcome == OutcomeSuccess || outcome == OutcomeUnavailable {
		m.PredictionDuration.Observe(elapsed.Seconds())
	}
}

// RegisterActiveSessions exposes the live session count reported by count.
func (m *Metrics) RegisterActiveSessions(count func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Sessions currently held in memory",
	}, func() float64 { return float64(count()) }))
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
