package repository

import (
	"context"

	"github.com/fastygo/questlog/domain"
)

// Task status filters.
const (
	StatusAll       = ""
	StatusActive    = "active"
	StatusCompleted = "completed"
)

type TaskFilter struct {
	UserID string
	Status string
	Limit  int
	Offset int
}

// ClampLimit bounds list page sizes.
func ClampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}

type TaskRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	// CountCompletedOn counts the user's tasks currently completed with a
	// completion timestamp on day.
	CountCompletedOn(ctx context.Context, userID string, day domain.Day) (int, error)
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	Update(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) (int, error)
}
