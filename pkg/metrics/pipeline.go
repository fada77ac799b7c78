package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics records scan pipeline outcomes, stage latency and degraded collaborators.
type PipelineMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	degraded *prometheus.CounterVec
}

// NewPipelineMetrics registers the pipeline metrics on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scan_runs_total",
		Help: "Scan pipeline runs by terminal outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scan_stage_duration_seconds",
		Help:    "Duration of scan pipeline stages in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
	degraded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scan_degraded_total",
		Help: "Collaborator failures absorbed by the scan pipeline.",
	}, []string{"component", "reason"})
	reg.MustRegister(runs, duration, degraded)
	return &PipelineMetrics{
		runs:     runs,
		duration: duration,
		degraded: degraded,
	}
}

// IncRun counts a finished run with the given outcome (complete, no_text, ocr_failed, rejected).
func (p *PipelineMetrics) IncRun(outcome string) {
	if p == nil || p.runs == nil {
		return
	}
	p.runs.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveStage records how long a stage took.
func (p *PipelineMetrics) ObserveStage(stage string, duration time.Duration) {
	if p == nil || p.duration == nil {
		return
	}
	p.duration.WithLabelValues(normalizeLabel(stage)).Observe(duration.Seconds())
}

// IncDegraded counts a collaborator failure that did not abort the run.
func (p *PipelineMetrics) IncDegraded(component, reason string) {
	if p == nil || p.degraded == nil {
		return
	}
	p.degraded.WithLabelValues(normalizeLabel(component), normalizeLabel(reason)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
