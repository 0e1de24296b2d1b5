// Package storetest holds the behaviour every repository.Store backend must
// share. Backends call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/questlog/domain"
	"github.com/fastygo/questlog/repository"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) repository.Store

func Run(t *testing.T, newStore Factory) {
	t.Run("task crud", func(t *testing.T) { testTaskCRUD(t, newStore(t)) })
	t.Run("task list filters", func(t *testing.T) { testTaskList(t, newStore(t)) })
	t.Run("count completed on", func(t *testing.T) { testCountCompletedOn(t, newStore(t)) })
	t.Run("delete by user", func(t *testing.T) { testDeleteByUser(t, newStore(t)) })
	t.Run("ledger create", func(t *testing.T) { testLedgerCreate(t, newStore(t)) })
	t.Run("ledger optimistic update", func(t *testing.T) { testLedgerUpdate(t, newStore(t)) })
	t.Run("ledger top", func(t *testing.T) { testLedgerTop(t, newStore(t)) })
	t.Run("atomic commit", func(t *testing.T) { testAtomicCommit(t, newStore(t)) })
	t.Run("atomic rollback", func(t *testing.T) { testAtomicRollback(t, newStore(t)) })
}

func mustTask(t *testing.T, userID, title string, p domain.Priority) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(userID, title, p)
	require.NoError(t, err)
	return task
}

func testTaskCRUD(t *testing.T, store repository.Store) {
	ctx := context.Background()
	tasks := store.Tasks()

	due := time.Date(2026, time.April, 1, 12, 0, 0, 0, time.UTC)
	task := mustTask(t, "user-1", "water plants", domain.PriorityHigh)
	task.Description = "balcony"
	task.DueDate = &due

	created, err := tasks.Create(ctx, task)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := tasks.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "water plants", got.Title)
	assert.Equal(t, "balcony", got.Description)
	assert.Equal(t, domain.PriorityHigh, got.Priority)
	assert.Equal(t, 30, got.XPReward)
	require.NotNil(t, got.DueDate)
	assert.True(t, due.Equal(*got.DueDate))
	assert.Nil(t, got.CompletedAt)

	done := got.Toggled(time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC))
	// Priority and reward are fixed at creation and must not be rewritten.
	done.Priority = domain.PriorityLow
	done.XPReward = 1
	require.NoError(t, tasks.Update(ctx, &done))

	got, err = tasks.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, got.Completed)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, domain.PriorityHigh, got.Priority)
	assert.Equal(t, 30, got.XPReward)

	require.NoError(t, tasks.Delete(ctx, created.ID))
	_, err = tasks.GetByID(ctx, created.ID)
	assert.True(t, errors.Is(err, domain.ErrTaskNotFound))
	assert.True(t, errors.Is(tasks.Delete(ctx, created.ID), domain.ErrTaskNotFound))

	missing := domain.Task{ID: "missing", Title: "x"}
	assert.True(t, errors.Is(tasks.Update(ctx, &missing), domain.ErrTaskNotFound))
}

func testTaskList(t *testing.T, store repository.Store) {
	ctx := context.Background()
	tasks := store.Tasks()
	at := time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)

	for i, title := range []string{"a", "b", "c", "d"} {
		task, err := tasks.Create(ctx, mustTask(t, "user-1", title, domain.PriorityLow))
		require.NoError(t, err)
		if i%2 == 0 {
			done := task.Toggled(at)
			require.NoError(t, tasks.Update(ctx, &done))
		}
	}
	_, err := tasks.Create(ctx, mustTask(t, "user-2", "other", domain.PriorityLow))
	require.NoError(t, err)

	all, err := tasks.List(ctx, repository.TaskFilter{UserID: "user-1"})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	active, err := tasks.List(ctx, repository.TaskFilter{UserID: "user-1", Status: repository.StatusActive})
	require.NoError(t, err)
	assert.Len(t, active, 2)
	for _, task := range active {
		assert.False(t, task.Completed)
	}

	completed, err := tasks.List(ctx, repository.TaskFilter{UserID: "user-1", Status: repository.StatusCompleted})
	require.NoError(t, err)
	assert.Len(t, completed, 2)

	page, err := tasks.List(ctx, repository.TaskFilter{UserID: "user-1", Limit: 3, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)
}

func testCountCompletedOn(t *testing.T, store repository.Store) {
	ctx := context.Background()
	tasks := store.Tasks()
	day := domain.NewDay(2026, time.March, 1)

	stamps := []time.Time{
		day.Start(),
		day.Start().Add(23*time.Hour + 59*time.Minute),
		day.End(),
	}
	for _, at := range stamps {
		task, err := tasks.Create(ctx, mustTask(t, "user-1", "t", domain.PriorityLow))
		require.NoError(t, err)
		done := task.Toggled(at)
		require.NoError(t, tasks.Update(ctx, &done))
	}
	_, err := tasks.Create(ctx, mustTask(t, "user-1", "open", domain.PriorityLow))
	require.NoError(t, err)

	n, err := tasks.CountCompletedOn(ctx, "user-1", day)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = tasks.CountCompletedOn(ctx, "user-2", day)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func testDeleteByUser(t *testing.T, store repository.Store) {
	ctx := context.Background()
	tasks := store.Tasks()
	for i := 0; i < 3; i++ {
		_, err := tasks.Create(ctx, mustTask(t, "user-1", "t", domain.PriorityLow))
		require.NoError(t, err)
	}
	keep, err := tasks.Create(ctx, mustTask(t, "user-2", "t", domain.PriorityLow))
	require.NoError(t, err)

	n, err := tasks.DeleteByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = tasks.GetByID(ctx, keep.ID)
	assert.NoError(t, err)
}

func testLedgerCreate(t *testing.T, store repository.Store) {
	ctx := context.Background()
	ledgers := store.Ledgers()

	ledger := domain.NewLedger("user-1")
	require.NoError(t, ledgers.Create(ctx, &ledger))
	assert.Equal(t, 0, ledger.Version)

	dup := domain.NewLedger("user-1")
	assert.True(t, errors.Is(ledgers.Create(ctx, &dup), domain.ErrLedgerExists))

	got, err := ledgers.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Level)
	assert.True(t, got.LastTaskDate.IsZero())

	_, err = ledgers.Get(ctx, "nobody")
	assert.True(t, errors.Is(err, domain.ErrLedgerNotFound))
}

func testLedgerUpdate(t *testing.T, store repository.Store) {
	ctx := context.Background()
	ledgers := store.Ledgers()

	ledger := domain.NewLedger("user-1")
	require.NoError(t, ledgers.Create(ctx, &ledger))

	stale := ledger
	ledger.XP = 120
	ledger.Level = domain.LevelFor(120)
	ledger.Streak = 2
	ledger.LongestStreak = 2
	ledger.LastTaskDate = domain.NewDay(2026, time.March, 2)
	require.NoError(t, ledgers.Update(ctx, &ledger))
	assert.Equal(t, 1, ledger.Version)

	got, err := ledgers.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 120, got.XP)
	assert.Equal(t, 2, got.Level)
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, "2026-03-02", got.LastTaskDate.String())

	stale.XP = 999
	assert.True(t, errors.Is(ledgers.Update(ctx, &stale), domain.ErrLedgerConflict))

	ghost := domain.NewLedger("ghost")
	assert.True(t, errors.Is(ledgers.Update(ctx, &ghost), domain.ErrLedgerNotFound))
}

func testLedgerTop(t *testing.T, store repository.Store) {
	ctx := context.Background()
	ledgers := store.Ledgers()

	for user, xp := range map[string]int{"ann": 50, "bob": 300, "cid": 50, "dan": 10} {
		l := domain.NewLedger(user)
		require.NoError(t, ledgers.Create(ctx, &l))
		l.XP = xp
		l.Level = domain.LevelFor(xp)
		require.NoError(t, ledgers.Update(ctx, &l))
	}

	top, err := ledgers.Top(ctx, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, []string{"bob", "ann", "cid"}, []string{top[0].UserID, top[1].UserID, top[2].UserID})
}

func testAtomicCommit(t *testing.T, store repository.Store) {
	ctx := context.Background()
	ledger := domain.NewLedger("user-1")
	require.NoError(t, store.Ledgers().Create(ctx, &ledger))
	task, err := store.Tasks().Create(ctx, mustTask(t, "user-1", "t", domain.PriorityMedium))
	require.NoError(t, err)

	err = store.Atomic(ctx, func(ctx context.Context, tasks repository.TaskRepository, ledgers repository.LedgerRepository) error {
		current, err := tasks.GetByID(ctx, task.ID)
		if err != nil {
			return err
		}
		done := current.Toggled(time.Now())
		if err := tasks.Update(ctx, &done); err != nil {
			return err
		}
		l, err := ledgers.Get(ctx, "user-1")
		if err != nil {
			return err
		}
		next := domain.ApplyCompletion(*l, done, domain.DayOf(time.Now()))
		return ledgers.Update(ctx, &next)
	})
	require.NoError(t, err)

	got, err := store.Tasks().GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, got.Completed)

	l, err := store.Ledgers().Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 20, l.XP)
}

func testAtomicRollback(t *testing.T, store repository.Store) {
	ctx := context.Background()
	ledger := domain.NewLedger("user-1")
	require.NoError(t, store.Ledgers().Create(ctx, &ledger))
	task, err := store.Tasks().Create(ctx, mustTask(t, "user-1", "t", domain.PriorityMedium))
	require.NoError(t, err)

	boom := errors.New("boom")
	err = store.Atomic(ctx, func(ctx context.Context, tasks repository.TaskRepository, ledgers repository.LedgerRepository) error {
		done := task.Toggled(time.Now())
		if err := tasks.Update(ctx, &done); err != nil {
			return err
		}
		l := domain.NewLedger("user-1")
		l.XP = 20
		l.Level = 1
		if err := ledgers.Update(ctx, &l); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := store.Tasks().GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, got.Completed)

	l, err := store.Ledgers().Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, l.XP)
	assert.Equal(t, 0, l.Version)
}
