package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fastygo/questlog/domain"
	"github.com/fastygo/questlog/repository"
)

const taskColumns = `id, user_id, title, description, priority, xp_reward, completed, due_date, completed_at, created_at, updated_at`

type taskRepository struct {
	db querier
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	row := r.db.QueryRow(ctx, query, id)
	return scanTask(row)
}

func (r *taskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	const query = `
	SELECT ` + taskColumns + `
	FROM tasks
	WHERE ($1 = '' OR user_id = $1)
	  AND ($2 = '' OR ($2 = 'completed' AND completed) OR ($2 = 'active' AND NOT completed))
	ORDER BY created_at DESC, id
	LIMIT $3 OFFSET $4
	`
	rows, err := r.db.Query(ctx, query, filter.UserID, filter.Status, repository.ClampLimit(filter.Limit), filter.Offset)
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
	WHERE user_id = $1 AND completed AND completed_at >= $2 AND completed_at < $3
	`
	var count int
	if err := r.db.QueryRow(ctx, query, userID, day.Start(), day.End()).Scan(&count); err != nil {
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
	INSERT INTO tasks (id, user_id, title, description, priority, xp_reward, completed, due_date, completed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING created_at, updated_at
	`

	if err := r.db.QueryRow(ctx, query,
		task.ID,
		task.UserID,
		task.Title,
		task.Description,
		string(task.Priority),
		task.XPReward,
		task.Completed,
		nullTime(task.DueDate),
		nullTime(task.CompletedAt),
	).Scan(&task.CreatedAt, &task.UpdatedAt); err != nil {
		return nil, err
	}

	return task, nil
}

// Update persists the mutable fields. Priority and reward are fixed at
// creation and never rewritten.
func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE tasks
	SET title = $2,
		description = $3,
		completed = $4,
		due_date = $5,
		completed_at = $6,
		updated_at = NOW()
	WHERE id = $1
	RETURNING updated_at
	`

	if err := r.db.QueryRow(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.Completed,
		nullTime(task.DueDate),
		nullTime(task.CompletedAt),
	).Scan(&task.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrTaskNotFound
		}
		return err
	}

	return nil
}

func (r *taskRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM tasks WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *taskRepository) DeleteByUser(ctx context.Context, userID string) (int, error) {
	const query = `DELETE FROM tasks WHERE user_id = $1`
	tag, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var (
		priority    string
		due         *time.Time
		completedAt *time.Time
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
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	task.Priority = domain.Priority(priority)
	task.DueDate = due
	task.CompletedAt = completedAt
	return &task, nil
}
