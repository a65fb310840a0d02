package perf

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/umucyo/guarantee-gateway/internal/audit"
	jobmetrics "github.com/umucyo/guarantee-gateway/internal/jobs"
	"github.com/umucyo/guarantee-gateway/jobs"
)

type flakySink struct {
	calls  int
	failAt map[int]bool
}

func (f *flakySink) Append(context.Context, audit.Record) error {
	f.calls++
	if f.failAt[f.calls] {
		return errors.New("connection reset")
	}
	return nil
}

func TestAuditJobThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := &flakySink{failAt: map[int]bool{7: true, 40: true}}
	job := jobs.NewAuditAppendJob(sink, nil, jobmetrics.NewMetrics(reg))

	for i := 0; i < 60; i++ {
		task, err := jobs.NewAuditAppendTask(audit.Record{
			ID:             uuid.New(),
			Operation:      "sendBidSecurityInformation",
			RequestPayload: "<x/>",
			Status:         audit.StatusSuccess,
		})
		if err != nil {
			t.Fatalf("build task: %v", err)
		}
		_ = job.Handle(context.Background(), task)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	success := metricValue(t, families, "gateway_jobs_total", map[string]string{"job": jobs.TaskAuditAppend, "status": "success"})
	failure := metricValue(t, families, "gateway_jobs_total", map[string]string{"job": jobs.TaskAuditAppend, "status": "failure"})
	if success != 58 || failure != 2 {
		t.Fatalf("unexpected counts success=%v failure=%v", success, failure)
	}
	if mean := histogramMean(t, families, "gateway_job_duration_seconds", map[string]string{"job": jobs.TaskAuditAppend}); mean > 0.05 {
		t.Fatalf("audit append mean duration above budget: %f", mean)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) && fam.GetType() == dto.MetricType_COUNTER {
				return metric.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != val {
				return false
			}
			matched++
		}
	}
	return matched == len(labels)
}
