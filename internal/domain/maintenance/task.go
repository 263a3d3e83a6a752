package maintenance

import (
	"time"

	"github.com/google/uuid"
)

// TaskType selects the handler a task dispatches to.
type TaskType string

const (
	TaskCleanup          TaskType = "cleanup"
	TaskIntegrityCheck   TaskType = "integrity_check"
	TaskComplianceCheck  TaskType = "compliance_check"
	TaskReportGeneration TaskType = "report_generation"
)

// Task is a recurring maintenance job with a cron-like schedule. Tasks
// are never deleted automatically; they are deactivated instead.
type Task struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Type       TaskType   `json:"type"`
	Schedule   string     `json:"schedule"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
	NextRunAt  time.Time  `json:"next_run_at"`
	IsActive   bool       `json:"is_active"`
	RunCount   int64      `json:"run_count"`
	LastResult string     `json:"last_result,omitempty"`

	// Version is an optimistic-concurrency token. UpsertTask rejects a
	// write whose version is stale, so two schedulers cannot both claim
	// the same due task.
	Version int64 `json:"version"`
}

// IsDue reports whether the task should run at the given instant.
func (t *Task) IsDue(now time.Time) bool {
	return t.IsActive && !t.NextRunAt.After(now)
}

// Claim advances NextRunAt to the next occurrence so the task stops
// being due. Persisting the claim through the version-checked upsert
// before dispatching is what keeps two schedulers from both executing
// the same task. A malformed schedule falls back to 24 hours from now.
func (t *Task) Claim(now time.Time) {
	next, err := NextRun(t.Schedule, now)
	if err != nil {
		next = now.Add(24 * time.Hour)
	}
	t.NextRunAt = next
}

// FinishRun records the bookkeeping of a completed execution, successful
// or not. The schedule itself was already advanced by Claim.
func (t *Task) FinishRun(now time.Time, summary string) {
	ranAt := now
	t.LastRunAt = &ranAt
	t.RunCount++
	t.LastResult = summary
}

// Result records one task execution. It is returned to the caller and
// optionally logged, never stored on the task itself beyond LastResult.
type Result struct {
	TaskID         uuid.UUID      `json:"task_id"`
	TaskName       string         `json:"task_name"`
	Success        bool           `json:"success"`
	DurationMillis int64          `json:"duration_ms"`
	Summary        string         `json:"summary"`
	Details        map[string]any `json:"details,omitempty"`
	ExecutedAt     time.Time      `json:"executed_at"`
}
