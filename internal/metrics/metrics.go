// Package metrics exposes Prometheus instrumentation for the TTS API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names.
const (
	metricSynthesisTotal    = "tts_synthesis_requests_total"
	metricSynthesisSeconds  = "tts_synthesis_duration_seconds"
	metricArtifactsSwept    = "tts_artifacts_swept_total"
	metricSweepFailures     = "tts_sweep_failures_total"
	metricArtifactsServed   = "tts_artifacts_served_total"
	metricArtifactsNotFound = "tts_artifacts_not_found_total"
)

// Label values for synthesis outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics holds the collectors registered for the service.
type Metrics struct {
	registry *prometheus.Registry

	SynthesisRequests *prometheus.CounterVec
	SynthesisDuration prometheus.Histogram
	ArtifactsSwept    prometheus.Counter
	SweepFailures     prometheus.Counter
	ArtifactsServed   prometheus.Counter
	ArtifactsNotFound prometheus.Counter
}

// New creates a Metrics instance backed by its own registry, keeping the
// service's collectors isolated from the global default registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		SynthesisRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: metricSynthesisTotal,
			Help: "Synthesis requests by outcome and producer mode.",
		}, []string{"outcome", "mode"}),
		SynthesisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    metricSynthesisSeconds,
			Help:    "Wall-clock time spent producing audio.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		ArtifactsSwept: factory.NewCounter(prometheus.CounterOpts{
			Name: metricArtifactsSwept,
			Help: "Artifacts removed by age-based sweeps.",
		}),
		SweepFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: metricSweepFailures,
			Help: "Artifacts that failed to delete during sweeps.",
		}),
		ArtifactsServed: factory.NewCounter(prometheus.CounterOpts{
			Name: metricArtifactsServed,
			Help: "Artifacts served via the audio endpoint.",
		}),
		ArtifactsNotFound: factory.NewCounter(prometheus.CounterOpts{
			Name: metricArtifactsNotFound,
			Help: "Audio endpoint requests for missing artifacts.",
		}),
	}
}

// Handler returns the HTTP handler exposing the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
