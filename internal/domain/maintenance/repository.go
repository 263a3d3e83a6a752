package maintenance

import "context"

// TaskStore persists the maintenance schedule. Implementations must
// honor the optimistic Version check on upsert: writing a task whose
// Version does not match the stored row is a conflict.
type TaskStore interface {
	ListTasks(ctx context.Context) ([]*Task, error)
	UpsertTask(ctx context.Context, task *Task) (*Task, error)
}
