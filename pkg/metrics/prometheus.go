package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder collects pipeline metrics on its own registry
// ⭐ SSOT: 메트릭 정의는 여기서만
type Recorder struct {
	registry *prometheus.Registry

	inferenceRequests *prometheus.CounterVec
	inferenceLatency  *prometheus.HistogramVec
	analyses          *prometheus.CounterVec
	pipelineRuns      *prometheus.CounterVec
	storeOps          *prometheus.CounterVec
	jobRuns           *prometheus.CounterVec
	jobDuration       *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		inferenceRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradepulse_inference_requests_total",
				Help: "Inference provider calls by outcome",
			},
			[]string{"provider", "outcome"},
		),
		inferenceLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradepulse_inference_duration_seconds",
				Help:    "Duration of inference provider calls in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 45},
			},
			[]string{"provider"},
		),
		analyses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradepulse_analysis_total",
				Help: "Instrument analyses by source (inference or fallback)",
			},
			[]string{"source"},
		),
		pipelineRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradepulse_pipeline_runs_total",
				Help: "Daily pipeline runs by final status",
			},
			[]string{"status"},
		),
		storeOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradepulse_store_operations_total",
				Help: "Report store operations by result",
			},
			[]string{"op", "status"},
		),
		jobRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradepulse_scheduler_job_runs_total",
				Help: "Scheduled job executions by result",
			},
			[]string{"job", "status"},
		),
		jobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradepulse_scheduler_job_duration_seconds",
				Help:    "Wall time of scheduled jobs including retries",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s .. ~34m
			},
			[]string{"job"},
		),
	}
}

// RecordInference records one provider call.
func (r *Recorder) RecordInference(provider, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.inferenceRequests.WithLabelValues(provider, outcome).Inc()
	r.inferenceLatency.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordAnalysis records how an analysis was produced.
func (r *Recorder) RecordAnalysis(source string) {
	if r == nil {
		return
	}
	r.analyses.WithLabelValues(source).Inc()
}

// RecordPipelineRun records the final status of a pipeline run.
func (r *Recorder) RecordPipelineRun(status string) {
	if r == nil {
		return
	}
	r.pipelineRuns.WithLabelValues(status).Inc()
}

// RecordStoreOp records a store operation result.
func (r *Recorder) RecordStoreOp(op string, err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.storeOps.WithLabelValues(op, status).Inc()
}

// RecordJobRun records one scheduled job execution (all attempts)
func (r *Recorder) RecordJobRun(job string, success bool, d time.Duration) {
	if r == nil {
		return
	}
	status := "success"
	if !success {
		status = "failed"
	}
	r.jobRuns.WithLabelValues(job, status).Inc()
	r.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

// Registry exposes the underlying registry (tests, custom exporters)
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
