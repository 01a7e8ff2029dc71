package metrics

import (
	"context"
	"fmt"
	"time"

	"validation-recorder/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "validation_recorder"

// Recorder collects gauges for one pipeline run and pushes them on exit
type Recorder struct {
	registry      *prometheus.Registry
	runResults    prometheus.Gauge
	scanChecks    prometheus.Gauge
	scanMetrics   prometheus.Gauge
	summaryChecks *prometheus.GaugeVec
	stageSuccess  *prometheus.GaugeVec
	lastRun       prometheus.Gauge
}

// NewRecorder creates a recorder with its own registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runResults: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_results_ingested",
			Help:      "Run results inserted by the last run.",
		}),
		scanChecks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scan_checks_saved",
			Help:      "Scan checks inserted by the last run.",
		}),
		scanMetrics: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scan_metrics_saved",
			Help:      "Scan metrics inserted by the last run.",
		}),
		summaryChecks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "summary_checks",
			Help:      "Today's check counts by validation type and outcome.",
		}, []string{"validation_type", "outcome"}),
		stageSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_success",
			Help:      "1 if the stage succeeded in the last run, 0 otherwise.",
		}, []string{"stage"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run completed.",
		}),
	}

	r.registry.MustRegister(r.runResults, r.scanChecks, r.scanMetrics, r.summaryChecks, r.stageSuccess, r.lastRun)
	return r
}

// Gatherer exposes the registry, mainly for tests
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

func (r *Recorder) RecordRunIngest(processed int) {
	r.runResults.Set(float64(processed))
}

func (r *Recorder) RecordScanIngest(checks, metrics int) {
	r.scanChecks.Set(float64(checks))
	r.scanMetrics.Set(float64(metrics))
}

// RecordSummary sets the per-outcome gauges for one validation type
func (r *Recorder) RecordSummary(s *models.ValidationSummary) {
	validationType := string(s.ValidationType)
	r.summaryChecks.WithLabelValues(validationType, "total").Set(float64(s.Total))
	r.summaryChecks.WithLabelValues(validationType, "passed").Set(float64(s.Passed))
	r.summaryChecks.WithLabelValues(validationType, "failed").Set(float64(s.Failed))
	r.summaryChecks.WithLabelValues(validationType, "error_or_other").Set(float64(s.ErrorOrOther))
}

func (r *Recorder) RecordStage(stage string, ok bool) {
	value := 0.0
	if ok {
		value = 1
	}
	r.stageSuccess.WithLabelValues(stage).Set(value)
}

// MarkCompleted stamps the run completion time
func (r *Recorder) MarkCompleted(t time.Time) {
	r.lastRun.Set(float64(t.Unix()))
}

// Push replaces this job's metrics on the Pushgateway at url
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
