package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/veloxpos/audit-engine/internal/domain/audit"
	"github.com/veloxpos/audit-engine/internal/domain/errors"
	"github.com/veloxpos/audit-engine/internal/domain/maintenance"
)

// Config holds the scheduler's operational settings.
type Config struct {
	// StoreTimeout bounds every store call made by a handler. The store
	// is the only blocking dependency; a hung call becomes a failed
	// result instead of a hung task.
	StoreTimeout time.Duration
	// ReportWindow is the trailing period covered by generated reports.
	ReportWindow time.Duration
	// StoreCallsPerSecond and StoreBurst throttle store-facing handler
	// calls so back-to-back scheduler ticks cannot hammer the store.
	StoreCallsPerSecond float64
	StoreBurst          int
}

// DefaultConfig returns the scheduler defaults.
func DefaultConfig() Config {
	return Config{
		StoreTimeout:        30 * time.Second,
		ReportWindow:        7 * 24 * time.Hour,
		StoreCallsPerSecond: 5,
		StoreBurst:          10,
	}
}

// FullResult is the outcome of a run-everything maintenance pass.
type FullResult struct {
	Success bool                 `json:"success"`
	Summary string               `json:"summary"`
	Details []maintenance.Result `json:"details"`
}

// ReportGenerator produces the security report embedded in generated
// report payloads. Optional; without one the report row carries only
// its period.
type ReportGenerator interface {
	GenerateReport(ctx context.Context, start, end time.Time) (*audit.SecurityReport, error)
}

// Service schedules and executes recurring maintenance tasks. Task
// executions are isolated: one failing handler produces a failed result
// and never aborts its siblings.
type Service struct {
	tasks     maintenance.TaskStore
	store     audit.RecordStore
	config    Config
	limiter   *rate.Limiter
	logger    *zap.Logger
	metrics   *serviceMetrics
	reportGen ReportGenerator
}

// NewService creates a maintenance service.
func NewService(tasks maintenance.TaskStore, store audit.RecordStore, config Config, logger *zap.Logger) (*Service, error) {
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = DefaultConfig().StoreTimeout
	}
	if config.ReportWindow <= 0 {
		config.ReportWindow = DefaultConfig().ReportWindow
	}
	if config.StoreCallsPerSecond <= 0 {
		config.StoreCallsPerSecond = DefaultConfig().StoreCallsPerSecond
	}
	if config.StoreBurst <= 0 {
		config.StoreBurst = DefaultConfig().StoreBurst
	}

	s := &Service{
		tasks:   tasks,
		store:   store,
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.StoreCallsPerSecond), config.StoreBurst),
		logger:  logger,
	}

	if err := s.initMetrics(); err != nil {
		return nil, errors.Wrap(err, "initializing maintenance metrics")
	}
	return s, nil
}

// SetReportGenerator attaches the generator used to fill report
// payloads. Call before the scheduler loop starts.
func (s *Service) SetReportGenerator(gen ReportGenerator) {
	s.reportGen = gen
}

// EnsureDefaultTasks seeds the standard maintenance schedule when the
// task store is empty. Existing schedules are left untouched.
func (s *Service) EnsureDefaultTasks(ctx context.Context) error {
	existing, err := s.tasks.ListTasks(ctx)
	if err != nil {
		return errors.Wrap(err, "listing maintenance tasks")
	}
	if len(existing) > 0 {
		return nil
	}

	now := time.Now().UTC()
	defaults := []*maintenance.Task{
		{Name: "Nightly audit cleanup", Type: maintenance.TaskCleanup, Schedule: "0 2 * * *"},
		{Name: "Weekly integrity check", Type: maintenance.TaskIntegrityCheck, Schedule: "0 3 * * 0"},
		{Name: "Daily compliance check", Type: maintenance.TaskComplianceCheck, Schedule: "0 4 * * *"},
		{Name: "Weekly security report", Type: maintenance.TaskReportGeneration, Schedule: "0 6 * * 1"},
	}

	for _, task := range defaults {
		task.ID = uuid.New()
		task.IsActive = true

		next, err := maintenance.NextRun(task.Schedule, now)
		if err != nil {
			next = now.Add(24 * time.Hour)
		}
		task.NextRunAt = next

		if _, err := s.tasks.UpsertTask(ctx, task); err != nil {
			return errors.Wrap(err, "seeding default maintenance task")
		}
		s.logger.Info("seeded default maintenance task",
			zap.String("task", task.Name),
			zap.String("type", string(task.Type)),
			zap.Time("next_run", task.NextRunAt))
	}
	return nil
}

// RunDueMaintenance executes every active task whose next run time has
// arrived and returns one result per executed task. Tasks that are not
// due, or whose claim was lost to a concurrent scheduler, are skipped.
func (s *Service) RunDueMaintenance(ctx context.Context) ([]maintenance.Result, error) {
	tasks, err := s.tasks.ListTasks(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing maintenance tasks")
	}

	now := time.Now().UTC()
	results := make([]maintenance.Result, 0)

	for _, task := range tasks {
		if !task.IsDue(now) {
			continue
		}

		// Claim the task before executing anything. The version-checked
		// upsert makes the claim exclusive: if it conflicts, another
		// scheduler already took this run and we must not execute it too.
		task.Claim(now)
		if _, err := s.tasks.UpsertTask(ctx, task); err != nil {
			if errors.IsType(err, errors.ErrorTypeConflict) {
				s.logger.Info("maintenance task claimed by another scheduler, skipping",
					zap.String("task", task.Name))
				continue
			}
			s.logger.Error("failed to claim maintenance task",
				zap.String("task", task.Name),
				zap.Error(err))
			continue
		}

		result := s.executeTask(ctx, task)
		results = append(results, result)

		task.FinishRun(time.Now().UTC(), result.Summary)
		if _, err := s.tasks.UpsertTask(ctx, task); err != nil {
			// The claim bumped the version, so a conflict here means
			// something rewrote the task mid-execution. Unexpected, but
			// the execution itself already happened either way.
			s.logger.Error("failed to persist maintenance task state",
				zap.String("task", task.Name),
				zap.Error(err))
		}
	}

	return results, nil
}

// RunFullMaintenance executes cleanup, integrity check, compliance check
// and generic system maintenance unconditionally, in that fixed order.
// Stage ordering is stable so logs and tests line up run to run.
func (s *Service) RunFullMaintenance(ctx context.Context) (*FullResult, error) {
	start := time.Now()

	stages := []struct {
		name    string
		handler func(context.Context) (string, map[string]any, error)
	}{
		{"cleanup", s.runCleanup},
		{"integrity_check", s.runIntegrityCheck},
		{"compliance_check", s.runComplianceCheck},
		{"system_maintenance", s.runSystemMaintenance},
	}

	details := make([]maintenance.Result, 0, len(stages))
	succeeded := 0
	for _, stage := range stages {
		result := s.runStage(ctx, stage.name, stage.handler)
		details = append(details, result)
		if result.Success {
			succeeded++
		}
	}

	elapsed := time.Since(start)
	full := &FullResult{
		Success: succeeded == len(stages),
		Summary: fmt.Sprintf("full maintenance completed in %s: %d/%d stages succeeded",
			elapsed.Round(time.Millisecond), succeeded, len(stages)),
		Details: details,
	}

	s.logger.Info("full maintenance finished",
		zap.Bool("success", full.Success),
		zap.Duration("elapsed", elapsed),
		zap.Int("stages_succeeded", succeeded),
		zap.Int("stages_total", len(stages)))

	return full, nil
}

// executeTask runs one task's handler to completion and captures the
// outcome. Handler errors and panics both become failed results; they
// never propagate to sibling tasks.
func (s *Service) executeTask(ctx context.Context, task *maintenance.Task) (result maintenance.Result) {
	start := time.Now()

	result = maintenance.Result{
		TaskID:     task.ID,
		TaskName:   task.Name,
		ExecutedAt: start.UTC(),
	}

	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Summary = fmt.Sprintf("maintenance handler panicked: %v", r)
			result.DurationMillis = time.Since(start).Milliseconds()
			s.recordExecution(string(task.Type), false, time.Since(start))
			s.logger.Error("maintenance handler panicked",
				zap.String("task", task.Name),
				zap.Any("panic", r))
		}
	}()

	summary, details, err := s.dispatch(ctx, task.Type)
	result.DurationMillis = time.Since(start).Milliseconds()
	result.Details = details

	if err != nil {
		result.Success = false
		result.Summary = err.Error()
		s.logger.Warn("maintenance task failed",
			zap.String("task", task.Name),
			zap.String("type", string(task.Type)),
			zap.Error(err))
	} else {
		result.Success = true
		result.Summary = summary
		s.logger.Info("maintenance task completed",
			zap.String("task", task.Name),
			zap.String("type", string(task.Type)),
			zap.Int64("duration_ms", result.DurationMillis))
	}

	s.recordExecution(string(task.Type), result.Success, time.Since(start))
	return result
}

// runStage is executeTask for the synthetic stages of a full run, which
// have no backing task row.
func (s *Service) runStage(ctx context.Context, name string, handler func(context.Context) (string, map[string]any, error)) (result maintenance.Result) {
	start := time.Now()
	result = maintenance.Result{
		TaskName:   name,
		ExecutedAt: start.UTC(),
	}

	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Summary = fmt.Sprintf("maintenance handler panicked: %v", r)
			result.DurationMillis = time.Since(start).Milliseconds()
			s.recordExecution(name, false, time.Since(start))
		}
	}()

	summary, details, err := handler(ctx)
	result.DurationMillis = time.Since(start).Milliseconds()
	result.Details = details

	if err != nil {
		result.Success = false
		result.Summary = err.Error()
	} else {
		result.Success = true
		result.Summary = summary
	}

	s.recordExecution(name, result.Success, time.Since(start))
	return result
}

func (s *Service) dispatch(ctx context.Context, taskType maintenance.TaskType) (string, map[string]any, error) {
	switch taskType {
	case maintenance.TaskCleanup:
		return s.runCleanup(ctx)
	case maintenance.TaskIntegrityCheck:
		return s.runIntegrityCheck(ctx)
	case maintenance.TaskComplianceCheck:
		return s.runComplianceCheck(ctx)
	case maintenance.TaskReportGeneration:
		return s.runReportGeneration(ctx)
	default:
		return "", nil, errors.NewValidationError("UNKNOWN_TASK_TYPE",
			fmt.Sprintf("no handler for task type %q", taskType))
	}
}

// storeCall throttles and bounds a store-facing operation.
func (s *Service) storeCall(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, nil, errors.Wrap(err, "waiting for store rate limit")
	}
	callCtx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	return callCtx, cancel, nil
}
