// Package metrics exposes Prometheus counters for the admission and
// lifecycle subsystem.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the service's Prometheus metrics. Each Collector owns its
// registry, so tests can create as many as they like without duplicate
// registration panics.
type Collector struct {
	registry *prometheus.Registry

	JobsSubmitted       prometheus.Counter
	AdmissionDenied     prometheus.Counter
	StageTransitions    *prometheus.CounterVec
	InvariantViolations prometheus.Counter
	ArtifactRequests    *prometheus.CounterVec
	StatusReads         prometheus.Counter
}

// NewCollector creates and registers all metrics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		JobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inkforge_jobs_submitted_total",
			Help: "Total number of jobs accepted for generation",
		}),
		AdmissionDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inkforge_admission_denied_total",
			Help: "Total number of submissions rejected by the rate limiter",
		}),
		StageTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inkforge_stage_transitions_total",
			Help: "Total number of accepted stage transitions",
		}, []string{"stage"}),
		InvariantViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inkforge_invariant_violations_total",
			Help: "Total number of illegal transitions attempted by the pipeline",
		}),
		ArtifactRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inkforge_artifact_requests_total",
			Help: "Total number of artifact retrievals by format and outcome",
		}, []string{"format", "outcome"}),
		StatusReads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inkforge_status_reads_total",
			Help: "Total number of status snapshots served to pollers",
		}),
	}

	c.registry.MustRegister(
		c.JobsSubmitted,
		c.AdmissionDenied,
		c.StageTransitions,
		c.InvariantViolations,
		c.ArtifactRequests,
		c.StatusReads,
	)
	return c
}

// Handler returns the /metrics HTTP handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
