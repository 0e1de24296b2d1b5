package task

import (
	"context"

	"go.uber.org/zap"

	"github.com/fastygo/questlog/domain"
	"github.com/fastygo/questlog/repository"
)

// UseCase serves task reads. They are unsynchronized with lifecycle
// mutations, which go through the progression engine.
type UseCase struct {
	tasks  repository.TaskRepository
	logger *zap.Logger
}

func New(tasks repository.TaskRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tasks:  tasks,
		logger: logger,
	}
}

// ListTasks returns the caller's tasks. The filter is always scoped to
// userID regardless of what the caller passed.
func (uc *UseCase) ListTasks(ctx context.Context, userID string, filter repository.TaskFilter) ([]domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	switch filter.Status {
	case repository.StatusAll, repository.StatusActive, repository.StatusCompleted:
	default:
		return nil, domain.NewError(domain.ErrCodeInvalid, "status must be active or completed")
	}
	filter.UserID = userID

	tasks, err := uc.tasks.List(ctx, filter)
	if err != nil {
		return nil, domain.AsStoreError(err)
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return tasks, nil
}

// GetTask returns one of the caller's tasks.
func (uc *UseCase) GetTask(ctx context.Context, userID, id string) (*domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	task, err := uc.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, domain.AsStoreError(err)
	}
	if !task.OwnedBy(userID) {
		uc.logger.Debug("task read denied", zap.String("task_id", id), zap.String("user_id", userID))
		return nil, domain.ErrForbidden
	}
	return task, nil
}
