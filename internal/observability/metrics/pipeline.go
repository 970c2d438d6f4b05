package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

const namespace = "legal"

// PipelineMetrics observes stage outcomes. It satisfies ports.PipelineObserver
// and doubles as a resilience state observer.
type PipelineMetrics struct {
	uploadsTotal       *prometheus.CounterVec
	stageTotal         *prometheus.CounterVec
	stageDuration      *prometheus.HistogramVec
	ocrConfidence      *prometheus.HistogramVec
	complianceTotal    *prometheus.CounterVec
	escalationsTotal   *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec
	breakerTransitions *prometheus.CounterVec
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	labels := prometheus.Labels{"service": service}

	uploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "intake",
			Name:        "uploads_total",
			Help:        "Uploads by outcome (accepted, rejected, quarantined).",
			ConstLabels: labels,
		},
		[]string{"outcome"},
	)
	stageTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "stage_total",
			Help:        "Completed pipeline stages by status.",
			ConstLabels: labels,
		},
		[]string{"stage", "status"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "stage_duration_seconds",
			Help:        "Pipeline stage duration in seconds.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			ConstLabels: labels,
		},
		[]string{"stage"},
	)
	ocrConfidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "extraction",
			Name:        "confidence",
			Help:        "Aggregate extraction confidence by strategy.",
			Buckets:     []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 95, 100},
			ConstLabels: labels,
		},
		[]string{"strategy"},
	)
	complianceTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "compliance",
			Name:        "level_total",
			Help:        "Analysis results by compliance level.",
			ConstLabels: labels,
		},
		[]string{"level"},
	)
	escalationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "review",
			Name:        "escalations_total",
			Help:        "Attorney review escalations by UPL risk level.",
			ConstLabels: labels,
		},
		[]string{"risk_level"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "resilience",
			Name:        "breaker_state",
			Help:        "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
			ConstLabels: labels,
		},
		[]string{"operation"},
	)
	breakerTransitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "resilience",
			Name:        "breaker_transitions_total",
			Help:        "Circuit breaker transitions by target state.",
			ConstLabels: labels,
		},
		[]string{"operation", "to"},
	)

	registerer.MustRegister(
		uploadsTotal,
		stageTotal,
		stageDuration,
		ocrConfidence,
		complianceTotal,
		escalationsTotal,
		breakerState,
		breakerTransitions,
	)

	return &PipelineMetrics{
		uploadsTotal:       uploadsTotal,
		stageTotal:         stageTotal,
		stageDuration:      stageDuration,
		ocrConfidence:      ocrConfidence,
		complianceTotal:    complianceTotal,
		escalationsTotal:   escalationsTotal,
		breakerState:       breakerState,
		breakerTransitions: breakerTransitions,
	}
}

func (m *PipelineMetrics) UploadHandled(outcome string) {
	m.uploadsTotal.WithLabelValues(orUnknown(outcome)).Inc()
}

func (m *PipelineMetrics) StageCompleted(stage domain.ResultKind, status string, duration time.Duration) {
	m.stageTotal.WithLabelValues(string(stage), orUnknown(status)).Inc()
	m.stageDuration.WithLabelValues(string(stage)).Observe(duration.Seconds())
}

func (m *PipelineMetrics) ExtractionConfidence(strategy domain.ExtractionStrategy, confidence float64) {
	m.ocrConfidence.WithLabelValues(orUnknown(string(strategy))).Observe(confidence)
}

func (m *PipelineMetrics) ComplianceLevel(level domain.ComplianceLevel) {
	m.complianceTotal.WithLabelValues(orUnknown(string(level))).Inc()
}

func (m *PipelineMetrics) RecordEscalation(risk domain.UPLRiskLevel) {
	m.escalationsTotal.WithLabelValues(orUnknown(string(risk))).Inc()
}

// BreakerStateChanged has the resilience.StateObserver signature.
func (m *PipelineMetrics) BreakerStateChanged(operation string, _, to gobreaker.State) {
	m.breakerState.WithLabelValues(operation).Set(breakerValue(to))
	m.breakerTransitions.WithLabelValues(operation, to.String()).Inc()
}

func breakerValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
