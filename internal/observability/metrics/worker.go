package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Worker run outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomeFailed    = "failed"
	OutcomeTimedOut  = "timed_out"
)

// WorkerMetrics covers the queue consumer: how long each document spends in
// the full pipeline and how long it waited on the bus before that.
type WorkerMetrics struct {
	registry *prometheus.Registry
	pipeline *PipelineMetrics

	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
	queueLag prometheus.Histogram
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"service": service}

	m := &WorkerMetrics{
		registry: registry,
		pipeline: NewPipelineMetrics(service, registry),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "document_runs_total",
			Help:        "Pipeline runs started from the ingestion queue, by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "document_run_duration_seconds",
			Help:        "Extraction through compliance analysis for one document.",
			Buckets:     []float64{0.25, 1, 2.5, 5, 10, 30, 60, 120, 300},
			ConstLabels: labels,
		}, []string{"outcome"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "documents_in_flight",
			Help:        "Documents currently inside the pipeline.",
			ConstLabels: labels,
		}),
		queueLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "queue_lag_seconds",
			Help:        "Delay between an upload being accepted and the worker picking it up.",
			Buckets:     prometheus.ExponentialBuckets(0.05, 3, 10),
			ConstLabels: labels,
		}),
	}
	registry.MustRegister(m.runs, m.duration, m.inFlight, m.queueLag)
	return m
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) Pipeline() *PipelineMetrics {
	return m.pipeline
}

// TrackDocument marks a run as started and returns the callback that closes it.
func (m *WorkerMetrics) TrackDocument() func(err error) {
	m.inFlight.Inc()
	started := time.Now()
	return func(err error) {
		m.inFlight.Dec()
		outcome := RunOutcome(err)
		m.runs.WithLabelValues(outcome).Inc()
		m.duration.WithLabelValues(outcome).Observe(time.Since(started).Seconds())
	}
}

func (m *WorkerMetrics) ObserveQueueLag(lag time.Duration) {
	if lag >= 0 {
		m.queueLag.Observe(lag.Seconds())
	}
}

// RunOutcome separates runs cut off by PIPELINE_TIMEOUT from other failures.
func RunOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeProcessed
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimedOut
	default:
		return OutcomeFailed
	}
}
