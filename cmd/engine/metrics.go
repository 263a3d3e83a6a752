package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veloxpos/audit-engine/internal/domain/maintenance"
)

// Metric definitions for the audit engine scheduler loop

var (
	schedulerTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "posaudit",
			Subsystem: "scheduler",
			Name:      "ticks_total",
			Help:      "Total number of scheduler ticks",
		},
		[]string{"status"},
	)

	tasksExecutedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "posaudit",
			Subsystem: "scheduler",
			Name:      "tasks_executed_total",
			Help:      "Total number of maintenance task executions",
		},
		[]string{"status"},
	)

	taskDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "posaudit",
			Subsystem: "scheduler",
			Name:      "task_duration_seconds",
			Help:      "Maintenance task execution duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
	)
)

// MetricsHandler returns the Prometheus metrics handler
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// recordTick records the outcome of one scheduler tick and its task
// executions.
func recordTick(ok bool, results []maintenance.Result) {
	status := "ok"
	if !ok {
		status = "error"
	}
	schedulerTicksTotal.WithLabelValues(status).Inc()

	for _, r := range results {
		taskStatus := "success"
		if !r.Success {
			taskStatus = "failure"
		}
		tasksExecutedTotal.WithLabelValues(taskStatus).Inc()
		taskDurationSeconds.Observe(float64(r.DurationMillis) / 1000)
	}
}
