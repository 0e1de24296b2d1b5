package progression_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/questlog/domain"
	"github.com/fastygo/questlog/internal/infrastructure/lock"
	"github.com/fastygo/questlog/repository"
	"github.com/fastygo/questlog/repository/memory"
	"github.com/fastygo/questlog/usecase/progression"
)

var day1 = time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)

type recordingSink struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
	err    error
}

func (s *recordingSink) Record(_ context.Context, events []domain.ProgressEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, events...)
	return nil
}

func (s *recordingSink) kinds() []domain.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.EventKind, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Kind)
	}
	return out
}

type fixture struct {
	store  *memory.Store
	sink   *recordingSink
	engine *progression.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New(func() time.Time { return day1 })
	sink := &recordingSink{}
	return &fixture{
		store:  store,
		sink:   sink,
		engine: progression.New(store, lock.NewLocal(), sink, nil),
	}
}

func (f *fixture) provision(t *testing.T, userID string) {
	t.Helper()
	_, err := f.engine.ProvisionLedger(context.Background(), userID)
	require.NoError(t, err)
}

func (f *fixture) createTask(t *testing.T, userID, priority string) *domain.Task {
	t.Helper()
	task, err := f.engine.CreateTask(context.Background(), userID, progression.NewTaskInput{Title: "task", Priority: priority})
	require.NoError(t, err)
	return task
}

func (f *fixture) ledger(t *testing.T, userID string) domain.Ledger {
	t.Helper()
	view, err := f.engine.Ledger(context.Background(), userID)
	require.NoError(t, err)
	return view.Ledger
}

func TestHandleToggle_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provision(t, "user-1")
	task := f.createTask(t, "user-1", "high")

	res, err := f.engine.HandleToggle(ctx, "user-1", task.ID, day1)
	require.NoError(t, err)
	assert.True(t, res.Task.Completed)
	assert.Equal(t, 30, res.Ledger.XP)
	assert.Equal(t, 1, res.Ledger.TasksCompleted)
	assert.Equal(t, 1, res.Ledger.Streak)
	assert.Equal(t, []domain.AchievementKey{domain.AchievementFirstSteps}, res.Transitions.NewAchievements)

	res, err = f.engine.HandleToggle(ctx, "user-1", task.ID, day1.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, res.Task.Completed)
	assert.Nil(t, res.Task.CompletedAt)
	assert.Equal(t, 0, res.Ledger.XP)
	assert.Equal(t, 0, res.Ledger.TasksCompleted)
	assert.Equal(t, 1, res.Ledger.Streak)
	assert.True(t, res.Transitions.IsEmpty())

	stored := f.ledger(t, "user-1")
	assert.Equal(t, 0, stored.XP)
	assert.Equal(t, 2, stored.Version)
	assert.Equal(t, []domain.EventKind{domain.EventAchievementUnlocked}, f.sink.kinds())
}

func TestHandleToggle_LevelUpReportedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Ledgers().Create(ctx, &domain.Ledger{UserID: "user-1", XP: 90, Level: 1}))

	first := f.createTask(t, "user-1", "medium")
	second := f.createTask(t, "user-1", "medium")

	res, err := f.engine.HandleToggle(ctx, "user-1", first.ID, day1)
	require.NoError(t, err)
	assert.Equal(t, 110, res.Ledger.XP)
	assert.Equal(t, 2, res.Ledger.Level)
	assert.True(t, res.Transitions.LeveledUp)
	assert.Equal(t, 1, res.Transitions.PreviousLevel)
	assert.Equal(t, 2, res.Transitions.NewLevel)

	res, err = f.engine.HandleToggle(ctx, "user-1", second.ID, day1)
	require.NoError(t, err)
	assert.Equal(t, 130, res.Ledger.XP)
	assert.False(t, res.Transitions.LeveledUp)

	assert.Equal(t, []domain.EventKind{
		domain.EventLevelUp,
		domain.EventAchievementUnlocked,
		domain.EventAchievementUnlocked,
	}, f.sink.kinds())
}

func TestHandleToggle_DailyWarrior(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provision(t, "user-1")

	var last *progression.ToggleResult
	for i := 0; i < 5; i++ {
		task := f.createTask(t, "user-1", "low")
		res, err := f.engine.HandleToggle(ctx, "user-1", task.ID, day1.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		last = res
	}

	assert.Equal(t, []domain.AchievementKey{
		domain.AchievementGettingStarted,
		domain.AchievementDailyWarrior,
	}, last.Transitions.NewAchievements)
	assert.Equal(t, 1, last.Ledger.Streak)
	assert.Equal(t, 50, last.Ledger.XP)
}

func TestHandleToggle_StreakAcrossDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provision(t, "user-1")

	for _, offset := range []int{0, 1, 2, 4} {
		task := f.createTask(t, "user-1", "low")
		_, err := f.engine.HandleToggle(ctx, "user-1", task.ID, day1.AddDate(0, 0, offset))
		require.NoError(t, err)
	}

	ledger := f.ledger(t, "user-1")
	assert.Equal(t, 1, ledger.Streak)
	assert.Equal(t, 3, ledger.LongestStreak)
	assert.Equal(t, "2026-03-05", ledger.LastTaskDate.String())
}

func TestDeleteTask_KeepsXP(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provision(t, "user-1")
	task := f.createTask(t, "user-1", "medium")

	_, err := f.engine.HandleToggle(ctx, "user-1", task.ID, day1)
	require.NoError(t, err)
	require.NoError(t, f.engine.DeleteTask(ctx, "user-1", task.ID))

	ledger := f.ledger(t, "user-1")
	assert.Equal(t, 20, ledger.XP)
	assert.Equal(t, 1, ledger.TasksCompleted)

	_, err = f.store.Tasks().GetByID(ctx, task.ID)
	assert.True(t, errors.Is(err, domain.ErrTaskNotFound))
}

func TestHandleToggle_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("unauthorized", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine.HandleToggle(ctx, "", "task", day1)
		assert.True(t, domain.IsDomainError(err, domain.ErrCodeUnauthorized))
	})

	t.Run("task not found", func(t *testing.T) {
		f := newFixture(t)
		f.provision(t, "user-1")
		_, err := f.engine.HandleToggle(ctx, "user-1", "missing", day1)
		assert.True(t, errors.Is(err, domain.ErrTaskNotFound))
	})

	t.Run("forbidden", func(t *testing.T) {
		f := newFixture(t)
		f.provision(t, "user-1")
		f.provision(t, "user-2")
		task := f.createTask(t, "user-1", "high")

		_, err := f.engine.HandleToggle(ctx, "user-2", task.ID, day1)
		assert.True(t, domain.IsDomainError(err, domain.ErrCodeForbidden))
		assert.Equal(t, 0, f.ledger(t, "user-1").XP)
		assert.Equal(t, 0, f.ledger(t, "user-2").XP)
	})

	t.Run("ledger missing rolls back", func(t *testing.T) {
		f := newFixture(t)
		task := f.createTask(t, "user-1", "high")

		_, err := f.engine.HandleToggle(ctx, "user-1", task.ID, day1)
		assert.True(t, errors.Is(err, domain.ErrLedgerNotFound))

		stored, err := f.store.Tasks().GetByID(ctx, task.ID)
		require.NoError(t, err)
		assert.False(t, stored.Completed)
	})

	t.Run("store unavailable", func(t *testing.T) {
		f := newFixture(t)
		f.provision(t, "user-1")
		task := f.createTask(t, "user-1", "high")
		f.store.SetError(errors.New("connection refused"))

		_, err := f.engine.HandleToggle(ctx, "user-1", task.ID, day1)
		assert.True(t, domain.IsDomainError(err, domain.ErrCodeStoreUnavailable))
	})

	t.Run("corrupt ledger", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.Ledgers().Create(ctx, &domain.Ledger{UserID: "user-1", XP: 250, Level: 1}))
		task := f.createTask(t, "user-1", "high")

		_, err := f.engine.HandleToggle(ctx, "user-1", task.ID, day1)
		assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvariantViolation))
	})
}

func TestHandleToggle_SinkFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provision(t, "user-1")
	task := f.createTask(t, "user-1", "high")
	f.sink.err = errors.New("outbox closed")

	res, err := f.engine.HandleToggle(ctx, "user-1", task.ID, day1)
	require.NoError(t, err)
	assert.Equal(t, 30, res.Ledger.XP)
	assert.Equal(t, 30, f.ledger(t, "user-1").XP)
}

func TestHandleToggle_ConcurrentTogglesSerialize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provision(t, "user-1")

	const n = 20
	ids := make([]string, n)
	for i := range ids {
		ids[i] = f.createTask(t, "user-1", "low").ID
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.engine.HandleToggle(ctx, "user-1", id, day1)
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	ledger := f.ledger(t, "user-1")
	assert.Equal(t, n*10, ledger.XP)
	assert.Equal(t, n, ledger.TasksCompleted)
	assert.Equal(t, n, ledger.Version)
	assert.Equal(t, domain.LevelFor(n*10), ledger.Level)
}

func TestCreateTask_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.CreateTask(ctx, "user-1", progression.NewTaskInput{Title: "x", Priority: "urgent"})
	assert.True(t, errors.Is(err, domain.ErrInvalidPriority))

	_, err = f.engine.CreateTask(ctx, "user-1", progression.NewTaskInput{Title: "  "})
	assert.True(t, errors.Is(err, domain.ErrEmptyTitle))

	_, err = f.engine.CreateTask(ctx, "", progression.NewTaskInput{Title: "x"})
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))

	task, err := f.engine.CreateTask(ctx, "user-1", progression.NewTaskInput{Title: " plan ", Description: " weekly ", Priority: ""})
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, domain.PriorityMedium, task.Priority)
	assert.Equal(t, 20, task.XPReward)
	assert.Equal(t, "weekly", task.Description)
}

func TestDeleteTask_Forbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.createTask(t, "user-1", "low")

	err := f.engine.DeleteTask(ctx, "user-2", task.ID)
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	_, err = f.store.Tasks().GetByID(ctx, task.ID)
	assert.NoError(t, err)
}

func TestProvisionLedger_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.engine.ProvisionLedger(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Level)

	task := f.createTask(t, "user-1", "high")
	_, err = f.engine.HandleToggle(ctx, "user-1", task.ID, day1)
	require.NoError(t, err)

	second, err := f.engine.ProvisionLedger(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 30, second.XP)
}

func TestResetProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provision(t, "user-1")
	f.provision(t, "user-2")

	for i := 0; i < 3; i++ {
		task := f.createTask(t, "user-1", "high")
		_, err := f.engine.HandleToggle(ctx, "user-1", task.ID, day1)
		require.NoError(t, err)
	}
	other := f.createTask(t, "user-2", "low")

	reset, err := f.engine.ResetProgress(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, reset.XP)
	assert.Equal(t, 1, reset.Level)
	assert.Equal(t, 0, reset.LongestStreak)
	assert.Equal(t, 4, reset.Version)

	tasks, err := f.store.Tasks().List(ctx, repository.TaskFilter{UserID: "user-1"})
	require.NoError(t, err)
	assert.Empty(t, tasks)

	_, err = f.store.Tasks().GetByID(ctx, other.ID)
	assert.NoError(t, err)
}

func TestAchievementsReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provision(t, "user-1")
	task := f.createTask(t, "user-1", "low")
	_, err := f.engine.HandleToggle(ctx, "user-1", task.ID, day1)
	require.NoError(t, err)

	report, err := f.engine.Achievements(ctx, "user-1", day1)
	require.NoError(t, err)
	assert.Len(t, report.Achievements, len(domain.AchievementRules()))
	assert.Equal(t, 1, report.Summary.Unlocked)

	var warrior domain.AchievementStatus
	for _, st := range report.Achievements {
		if st.Key == domain.AchievementDailyWarrior {
			warrior = st
		}
	}
	assert.Equal(t, 1, warrior.Progress)

	_, err = f.engine.Achievements(ctx, "nobody", day1)
	assert.True(t, errors.Is(err, domain.ErrLedgerNotFound))
}

func TestLeaderboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, user := range []string{"ann", "bob", "cid"} {
		f.provision(t, user)
	}
	for user, priority := range map[string]string{"ann": "low", "bob": "high", "cid": "medium"} {
		task := f.createTask(t, user, priority)
		_, err := f.engine.HandleToggle(ctx, user, task.ID, day1)
		require.NoError(t, err)
	}

	top, err := f.engine.Leaderboard(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "bob", top[0].UserID)
	assert.Equal(t, "cid", top[1].UserID)
}

// unisolatedStore runs Atomic straight against the shared repositories, so
// nothing but the engine's locker keeps two toggles of one user apart.
type unisolatedStore struct {
	*memory.Store
	ledgers repository.LedgerRepository
}

func newUnisolatedStore() *unisolatedStore {
	store := memory.New(func() time.Time { return day1 })
	return &unisolatedStore{
		Store:   store,
		ledgers: &pairingLedgers{LedgerRepository: store.Ledgers(), peer: make(chan struct{})},
	}
}

func (s *unisolatedStore) Ledgers() repository.LedgerRepository { return s.ledgers }

func (s *unisolatedStore) Atomic(ctx context.Context, fn repository.TxFunc) error {
	return fn(ctx, s.Store.Tasks(), s.ledgers)
}

// pairingLedgers holds every ledger read until a second reader shows up or a
// short wait expires, so overlapping toggles are guaranteed to read the same
// version.
type pairingLedgers struct {
	repository.LedgerRepository
	peer chan struct{}
}

func (l *pairingLedgers) Get(ctx context.Context, userID string) (*domain.Ledger, error) {
	ledger, err := l.LedgerRepository.Get(ctx, userID)
	select {
	case l.peer <- struct{}{}:
	case <-l.peer:
	case <-time.After(50 * time.Millisecond):
	}
	return ledger, err
}

func toggleAll(t *testing.T, engine *progression.Engine, userID string, ids []string) []error {
	t.Helper()
	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = engine.HandleToggle(context.Background(), userID, id, day1)
		}(i, id)
	}
	wg.Wait()
	return errs
}

func seedTasks(t *testing.T, engine *progression.Engine, userID string, n int) []string {
	t.Helper()
	_, err := engine.ProvisionLedger(context.Background(), userID)
	require.NoError(t, err)
	ids := make([]string, n)
	for i := range ids {
		task, err := engine.CreateTask(context.Background(), userID, progression.NewTaskInput{Title: "task", Priority: "low"})
		require.NoError(t, err)
		ids[i] = task.ID
	}
	return ids
}

func TestHandleToggle_LockerSerializesUnisolatedStore(t *testing.T) {
	store := newUnisolatedStore()
	engine := progression.New(store, lock.NewLocal(), nil, nil)
	ids := seedTasks(t, engine, "user-1", 5)

	for _, err := range toggleAll(t, engine, "user-1", ids) {
		require.NoError(t, err)
	}

	view, err := engine.Ledger(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 50, view.Ledger.XP)
	assert.Equal(t, 5, view.Ledger.TasksCompleted)
	assert.Equal(t, 5, view.Ledger.Version)
}

func TestHandleToggle_WithoutLockerVersionGuardRejects(t *testing.T) {
	store := newUnisolatedStore()
	engine := progression.New(store, nil, nil, nil)
	ids := seedTasks(t, engine, "user-1", 2)

	errs := toggleAll(t, engine, "user-1", ids)

	conflicts := 0
	for _, err := range errs {
		if err != nil {
			assert.True(t, domain.IsDomainError(err, domain.ErrCodeConflict), err)
			conflicts++
		}
	}
	assert.Equal(t, 1, conflicts)

	view, err := engine.Ledger(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 10, view.Ledger.XP)
	assert.Equal(t, 1, view.Ledger.Version)
}

func TestHandleToggle_LockWaitKeepsContextError(t *testing.T) {
	store := memory.New(func() time.Time { return day1 })
	locker := lock.NewLocal()
	engine := progression.New(store, locker, nil, nil)
	ids := seedTasks(t, engine, "user-1", 1)

	release, err := locker.Lock(context.Background(), "user-1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = engine.HandleToggle(ctx, "user-1", ids[0], day1)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, domain.IsDomainError(err, domain.ErrCodeConflict))
}
