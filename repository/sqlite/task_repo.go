package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/questlog/domain"
	"github.com/fastygo/questlog/repository"
)

const taskColumns = `id, user_id, title, description, priority, xp_reward, completed, due_date, completed_at, created_at, updated_at`

type taskRepository struct {
	db  querier
	now func() time.Time
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`
	return scanTask(r.db.QueryRowContext(ctx, query, id))
}

func (r *taskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	query := `
	SELECT ` + taskColumns + `
	FROM tasks
	WHERE (?1 = '' OR user_id = ?1)
	  AND (?2 = '' OR (?2 = 'completed' AND completed = 1) OR (?2 = 'active' AND completed = 0))
	ORDER BY created_at DESC, id
	LIMIT ?3 OFFSET ?4
	`
	rows, err := r.db.QueryContext(ctx, query, filter.UserID, filter.Status, repository.ClampLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (r *taskRepository) CountCompletedOn(ctx context.Context, userID string, day domain.Day) (int, error) {
	const query = `
	SELECT COUNT(*)
	FROM tasks
	WHERE user_id = ? AND completed = 1 AND completed_at >= ? AND completed_at < ?
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, userID, toNanos(day.Start()), toNanos(day.End())).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO tasks (id, user_id, title, description, priority, xp_reward, completed, due_date, completed_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := r.now().UTC()
	if _, err := r.db.ExecContext(ctx, query,
		task.ID,
		task.UserID,
		task.Title,
		task.Description,
		string(task.Priority),
		task.XPReward,
		task.Completed,
		nullNanos(task.DueDate),
		nullNanos(task.CompletedAt),
		toNanos(now),
		toNanos(now),
	); err != nil {
		return nil, err
	}

	task.CreatedAt = now
	task.UpdatedAt = now
	return task, nil
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE tasks
	SET title = ?,
		description = ?,
		completed = ?,
		due_date = ?,
		completed_at = ?,
		updated_at = ?
	WHERE id = ?
	`

	now := r.now().UTC()
	res, err := r.db.ExecContext(ctx, query,
		task.Title,
		task.Description,
		task.Completed,
		nullNanos(task.DueDate),
		nullNanos(task.CompletedAt),
		toNanos(now),
		task.ID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return domain.ErrTaskNotFound
	}
	task.UpdatedAt = now
	return nil
}

func (r *taskRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *taskRepository) DeleteByUser(ctx context.Context, userID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var (
		priority           string
		due, completedAt   sql.NullInt64
		createdAt, updated int64
	)

	if err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&task.Description,
		&priority,
		&task.XPReward,
		&task.Completed,
		&due,
		&completedAt,
		&createdAt,
		&updated,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	task.Priority = domain.Priority(priority)
	task.DueDate = timePtr(due)
	task.CompletedAt = timePtr(completedAt)
	task.CreatedAt = fromNanos(createdAt)
	task.UpdatedAt = fromNanos(updated)
	return &task, nil
}
