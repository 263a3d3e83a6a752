package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veloxpos/audit-engine/internal/domain/errors"
	"github.com/veloxpos/audit-engine/internal/domain/maintenance"
)

// TaskStore implements maintenance.TaskStore on PostgreSQL.
type TaskStore struct {
	db *pgxpool.Pool
}

func NewTaskStore(db *pgxpool.Pool) *TaskStore {
	return &TaskStore{db: db}
}

// ListTasks returns every maintenance task, active or not.
func (s *TaskStore) ListTasks(ctx context.Context) ([]*maintenance.Task, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, type, schedule, last_run_at, next_run_at,
			is_active, run_count, last_result, version
		FROM maintenance_tasks
		ORDER BY name`)
	if err != nil {
		return nil, errors.NewUnavailableError("task store", "listing tasks").WithCause(err)
	}
	defer rows.Close()

	var tasks []*maintenance.Task
	for rows.Next() {
		var task maintenance.Task
		err := rows.Scan(
			&task.ID,
			&task.Name,
			&task.Type,
			&task.Schedule,
			&task.LastRunAt,
			&task.NextRunAt,
			&task.IsActive,
			&task.RunCount,
			&task.LastResult,
			&task.Version,
		)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan maintenance task").WithCause(err)
		}
		tasks = append(tasks, &task)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewUnavailableError("task store", "reading task rows").WithCause(err)
	}

	return tasks, nil
}

// UpsertTask inserts a new task or updates an existing one. The update
// only lands when the caller holds the current version; a stale version
// means another scheduler claimed the task first and yields a conflict.
func (s *TaskStore) UpsertTask(ctx context.Context, task *maintenance.Task) (*maintenance.Task, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO maintenance_tasks (
			id, name, type, schedule, last_run_at, next_run_at,
			is_active, run_count, last_result, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			schedule = EXCLUDED.schedule,
			last_run_at = EXCLUDED.last_run_at,
			next_run_at = EXCLUDED.next_run_at,
			is_active = EXCLUDED.is_active,
			run_count = EXCLUDED.run_count,
			last_result = EXCLUDED.last_result,
			version = maintenance_tasks.version + 1
		WHERE maintenance_tasks.version = $10`,
		task.ID, task.Name, task.Type, task.Schedule,
		task.LastRunAt, task.NextRunAt, task.IsActive,
		task.RunCount, task.LastResult, task.Version, task.Version+1)
	if err != nil {
		return nil, errors.NewUnavailableError("task store", "upserting task").WithCause(err)
	}

	if tag.RowsAffected() == 0 {
		return nil, errors.NewConflictError("task version is stale")
	}

	task.Version++
	return task, nil
}
