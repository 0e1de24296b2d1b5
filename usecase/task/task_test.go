package task_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/questlog/domain"
	"github.com/fastygo/questlog/repository"
	"github.com/fastygo/questlog/repository/memory"
	taskUC "github.com/fastygo/questlog/usecase/task"
)

func seed(t *testing.T, store *memory.Store, userID, title string) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(userID, title, domain.PriorityLow)
	require.NoError(t, err)
	created, err := store.Tasks().Create(context.Background(), task)
	require.NoError(t, err)
	return created
}

func TestUseCase_ListScopesToCaller(t *testing.T) {
	store := memory.New(time.Now)
	uc := taskUC.New(store.Tasks(), nil)
	seed(t, store, "alice", "one")
	seed(t, store, "alice", "two")
	seed(t, store, "bob", "three")

	tasks, err := uc.ListTasks(context.Background(), "alice", repository.TaskFilter{UserID: "bob"})
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
	for _, task := range tasks {
		assert.Equal(t, "alice", task.UserID)
	}

	tasks, err = uc.ListTasks(context.Background(), "carol", repository.TaskFilter{})
	require.NoError(t, err)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)
}

func TestUseCase_ListRejects(t *testing.T) {
	uc := taskUC.New(memory.New(time.Now).Tasks(), nil)

	_, err := uc.ListTasks(context.Background(), "", repository.TaskFilter{})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeUnauthorized))

	_, err = uc.ListTasks(context.Background(), "alice", repository.TaskFilter{Status: "archived"})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
}

func TestUseCase_GetTask(t *testing.T) {
	store := memory.New(time.Now)
	uc := taskUC.New(store.Tasks(), nil)
	created := seed(t, store, "alice", "one")

	got, err := uc.GetTask(context.Background(), "alice", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "one", got.Title)

	_, err = uc.GetTask(context.Background(), "bob", created.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = uc.GetTask(context.Background(), "alice", "missing")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
}

func TestUseCase_StoreFailure(t *testing.T) {
	store := memory.New(time.Now)
	uc := taskUC.New(store.Tasks(), nil)
	store.SetError(assert.AnError)

	_, err := uc.ListTasks(context.Background(), "alice", repository.TaskFilter{})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeStoreUnavailable))
}
