// Package metrics exposes Prometheus counters for backend attempts and
// finished jobs.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/phrazzld/slidegen/internal/events"
	"github.com/phrazzld/slidegen/internal/llm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "slidegen"

// Recorder owns a private registry so tests and multiple servers in one
// process never collide on the default one.
type Recorder struct {
	registry *prometheus.Registry
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
	jobs     *prometheus.CounterVec
}

var (
	_ llm.AttemptObserver = (*Recorder)(nil)
	_ events.EventHandler = (*Recorder)(nil)
)

// NewRecorder creates a Recorder with the Go and process collectors
// registered alongside the slidegen metrics.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "attempts_total",
			Help:      "Backend calls by provider, model and outcome.",
		}, []string{"provider", "model", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "attempt_duration_seconds",
			Help:      "Latency of backend calls.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"provider", "model"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Jobs that reached a terminal status.",
		}, []string{"kind", "status"}),
	}
	r.registry.MustRegister(
		r.attempts,
		r.duration,
		r.jobs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveAttempt implements llm.AttemptObserver.
func (r *Recorder) ObserveAttempt(provider, model, outcome string, elapsed time.Duration) {
	r.attempts.WithLabelValues(provider, model, outcome).Inc()
	r.duration.WithLabelValues(provider, model).Observe(elapsed.Seconds())
}

// HandleEvent counts events.JobFinished notifications. Other event types
// are ignored.
func (r *Recorder) HandleEvent(_ context.Context, event *events.Event) error {
	if event.Type != events.JobFinished {
		return nil
	}
	var payload events.JobFinishedPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", event.Type, err)
	}
	r.jobs.WithLabelValues(payload.Kind, payload.Status).Inc()
	return nil
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
