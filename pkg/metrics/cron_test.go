package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsRecordsRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	job := "ledger-replay"
	finished := time.Date(2026, 4, 2, 3, 0, 0, 0, time.UTC)

	m.ObserveRun(job, 250*time.Millisecond, nil, finished)
	m.ObserveRun(job, time.Second, errors.New("redis down"), finished.Add(time.Hour))
	m.LockSkipped()
	m.LockSkipped()
	m.LockLost()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	runs := findMetricFamily(mfs, "storefront_cron_job_runs_total")
	if runs == nil {
		t.Fatal("runs counter not exported")
	}
	for _, metric := range runs.GetMetric() {
		if got := metric.GetCounter().GetValue(); got != 1 {
			t.Fatalf("expected one run per result, got %f for %v", got, metric.GetLabel())
		}
	}

	if got, err := fetchHistogramSum(mfs, "storefront_cron_job_duration_seconds", "job", job); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got != 1.25 {
		t.Fatalf("expected duration sum 1.25, got %f", got)
	}

	last := findMetricFamily(mfs, "storefront_cron_job_last_success_timestamp_seconds")
	if last == nil || last.GetMetric()[0].GetGauge().GetValue() != float64(finished.Unix()) {
		t.Fatalf("last success should only move on success, got %v", last)
	}

	if got, err := fetchCounterValue(mfs, "storefront_cron_lock_events_total", "event", "skipped"); err != nil || got != 2 {
		t.Fatalf("expected 2 skipped cycles, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "storefront_cron_lock_events_total", "event", "lost"); err != nil || got != 1 {
		t.Fatalf("expected 1 lost lock, got %f err=%v", got, err)
	}
}

func TestNilCronJobMetricsIsSafe(t *testing.T) {
	var m *CronJobMetrics
	m.ObserveRun("x", time.Second, nil, time.Now())
	m.LockSkipped()
	m.LockLost()
	if NewCronJobMetrics(nil) != nil {
		t.Fatal("nil registerer should yield nil metrics")
	}
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
