package maintenance

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// serviceMetrics tracks maintenance execution through the otel meter.
type serviceMetrics struct {
	tasksExecuted metric.Int64Counter
	tasksFailed   metric.Int64Counter
	taskDuration  metric.Float64Histogram
}

func (s *Service) initMetrics() error {
	meter := otel.Meter("maintenance.scheduler")
	s.metrics = &serviceMetrics{}

	tasksExecuted, err := meter.Int64Counter("maintenance.tasks.executed",
		metric.WithDescription("Total number of maintenance task executions"))
	if err != nil {
		return err
	}
	s.metrics.tasksExecuted = tasksExecuted

	tasksFailed, err := meter.Int64Counter("maintenance.tasks.failed",
		metric.WithDescription("Total number of failed maintenance task executions"))
	if err != nil {
		return err
	}
	s.metrics.tasksFailed = tasksFailed

	taskDuration, err := meter.Float64Histogram("maintenance.task.duration",
		metric.WithDescription("Duration of maintenance task executions"),
		metric.WithUnit("ms"))
	if err != nil {
		return err
	}
	s.metrics.taskDuration = taskDuration

	return nil
}

func (s *Service) recordExecution(taskType string, success bool, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("task_type", taskType))

	s.metrics.tasksExecuted.Add(context.Background(), 1, attrs)
	if !success {
		s.metrics.tasksFailed.Add(context.Background(), 1, attrs)
	}
	s.metrics.taskDuration.Record(context.Background(), float64(elapsed.Milliseconds()), attrs)
}
