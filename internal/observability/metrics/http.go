package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// otherRoute labels every path outside the API surface, so scanners probing
// random URLs cannot grow the series count.
const otherRoute = "other"

var knownRoots = []string{"/healthz", "/metrics", "/openapi.yaml", "/v1/documents", "/v1/reviews/export"}

type HTTPServerMetrics struct {
	registry *prometheus.Registry
	pipeline *PipelineMetrics

	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	inFlight    prometheus.Gauge
	uploadBytes prometheus.Histogram
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"service": service}

	m := &HTTPServerMetrics{
		registry: registry,
		pipeline: NewPipelineMetrics(service, registry),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "requests_total",
			Help:        "API requests by route and response status.",
			ConstLabels: labels,
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "request_duration_seconds",
			Help:        "API request latency. Stage routes include the synchronous stage run.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			ConstLabels: labels,
		}, []string{"method", "route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "API requests currently being served.",
			ConstLabels: labels,
		}),
		uploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "upload_size_bytes",
			Help:        "Declared Content-Length of document uploads.",
			Buckets:     prometheus.ExponentialBuckets(4<<10, 4, 8),
			ConstLabels: labels,
		}),
	}
	registry.MustRegister(m.requests, m.latency, m.inFlight, m.uploadBytes)
	return m
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Pipeline returns the stage metrics registered alongside the HTTP ones.
func (m *HTTPServerMetrics) Pipeline() *PipelineMetrics {
	return m.pipeline
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		route := routeLabel(r.URL.Path)
		if r.Method == http.MethodPost && route == "/v1/documents" && r.ContentLength > 0 {
			m.uploadBytes.Observe(float64(r.ContentLength))
		}

		m.inFlight.Inc()
		defer m.inFlight.Dec()

		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(recorder, r)

		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(recorder.statusCode)).Inc()
		m.latency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// routeLabel collapses document IDs into a placeholder and folds unknown
// paths into otherRoute.
func routeLabel(path string) string {
	known := false
	for _, root := range knownRoots {
		if path == root || strings.HasPrefix(path, root+"/") {
			known = true
			break
		}
	}
	if !known {
		return otherRoute
	}
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) >= 3 && parts[0] == "v1" && parts[1] == "documents" && parts[2] != "" {
		parts[2] = "{document_id}"
	}
	return "/" + strings.Join(parts, "/")
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
