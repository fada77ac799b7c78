package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestPipelineMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewPipelineMetrics(reg)
	metrics.IncRun("complete")
	metrics.IncRun("complete")
	metrics.IncRun("")
	metrics.ObserveStage("ocr", 250*time.Millisecond)
	metrics.IncDegraded("enrichment", "timeout")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "scan_runs_total", "outcome", "complete"); err != nil {
		t.Fatalf("fetch runs: %v", err)
	} else if got != 2 {
		t.Fatalf("expected runs=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "scan_runs_total", "outcome", "unknown"); err != nil {
		t.Fatalf("fetch unknown runs: %v", err)
	} else if got != 1 {
		t.Fatalf("expected empty outcome to be labelled unknown, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "scan_degraded_total", "reason", "timeout"); err != nil {
		t.Fatalf("fetch degraded: %v", err)
	} else if got != 1 {
		t.Fatalf("expected degraded=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "scan_stage_duration_seconds", "stage", "ocr"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestPipelineMetricsNilSafe(t *testing.T) {
	var metrics *PipelineMetrics
	metrics.IncRun("complete")
	metrics.ObserveStage("ocr", time.Second)
	metrics.IncDegraded("ocr", "timeout")

	unregistered := NewPipelineMetrics(nil)
	unregistered.IncRun("complete")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
