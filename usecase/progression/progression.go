package progression

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/questlog/domain"
	"github.com/fastygo/questlog/pkg/logger"
	"github.com/fastygo/questlog/repository"
	"github.com/fastygo/questlog/usecase"
)

// NewTaskInput carries the caller-supplied fields of a new task.
type NewTaskInput struct {
	Title       string
	Description string
	Priority    string
	DueDate     *time.Time
}

// LedgerView is a ledger plus its position inside the current level.
type LedgerView struct {
	Ledger   domain.Ledger        `json:"ledger"`
	Progress domain.LevelProgress `json:"progress"`
}

// AchievementReport is the evaluated rule table for one user.
type AchievementReport struct {
	Achievements []domain.AchievementStatus `json:"achievements"`
	Summary      domain.AchievementSummary  `json:"summary"`
}

// Engine applies task lifecycle events to a user's ledger. Mutations for the
// same user are serialized through the locker and committed atomically;
// reads go straight to the store.
type Engine struct {
	store  repository.Store
	locker usecase.Locker
	sink   usecase.TransitionSink
	logger *zap.Logger
}

func New(store repository.Store, locker usecase.Locker, sink usecase.TransitionSink, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:  store,
		locker: locker,
		sink:   sink,
		logger: log,
	}
}

// HandleToggle flips the completion state of a task and books the XP,
// streak and achievement consequences.
func (e *Engine) HandleToggle(ctx context.Context, userID, taskID string, at time.Time) (*ToggleResult, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	release, err := e.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	var result ToggleResult
	err = e.store.Atomic(ctx, func(ctx context.Context, tasks repository.TaskRepository, ledgers repository.LedgerRepository) error {
		task, err := ownedTask(ctx, tasks, userID, taskID)
		if err != nil {
			return err
		}
		ledger, err := loadLedger(ctx, ledgers, userID)
		if err != nil {
			return err
		}
		completedToday, err := tasks.CountCompletedOn(ctx, userID, domain.DayOf(at))
		if err != nil {
			return err
		}

		result = Apply(*task, *ledger, completedToday, at)

		if err := tasks.Update(ctx, &result.Task); err != nil {
			return err
		}
		return ledgers.Update(ctx, &result.Ledger)
	})
	if err != nil {
		e.reject(ctx, "toggle", userID, err)
		return nil, domain.AsStoreError(err)
	}

	log := logger.WithRequestID(ctx, e.logger).With(zap.String("user_id", userID), zap.String("task_id", taskID))
	if result.Transitions.LeveledUp {
		log.Info("level up", zap.Int("from", result.Transitions.PreviousLevel), zap.Int("to", result.Transitions.NewLevel))
	}
	for _, key := range result.Transitions.NewAchievements {
		log.Info("achievement unlocked", zap.String("achievement", string(key)))
	}
	e.record(ctx, log, result.Transitions.Events(userID, taskID, at))

	return &result, nil
}

// CreateTask validates the input, fixes the XP reward and stores the task.
func (e *Engine) CreateTask(ctx context.Context, userID string, input NewTaskInput) (*domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	priority, err := domain.ParsePriority(input.Priority)
	if err != nil {
		return nil, err
	}
	task, err := domain.NewTask(userID, input.Title, priority)
	if err != nil {
		return nil, err
	}
	task.Description = strings.TrimSpace(input.Description)
	task.DueDate = input.DueDate

	release, err := e.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	created, err := e.store.Tasks().Create(ctx, task)
	if err != nil {
		e.reject(ctx, "create", userID, err)
		return nil, domain.AsStoreError(err)
	}
	return created, nil
}

// DeleteTask removes a task. Deletion is terminal and leaves the ledger as
// it is, so XP earned by a completed task is kept.
func (e *Engine) DeleteTask(ctx context.Context, userID, taskID string) error {
	if userID == "" {
		return domain.ErrUnauthorized
	}
	release, err := e.lock(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	err = e.store.Atomic(ctx, func(ctx context.Context, tasks repository.TaskRepository, _ repository.LedgerRepository) error {
		if _, err := ownedTask(ctx, tasks, userID, taskID); err != nil {
			return err
		}
		return tasks.Delete(ctx, taskID)
	})
	if err != nil {
		e.reject(ctx, "delete", userID, err)
		return domain.AsStoreError(err)
	}
	return nil
}

// ProvisionLedger creates the zero ledger for a user. Calling it again
// returns the existing ledger.
func (e *Engine) ProvisionLedger(ctx context.Context, userID string) (*domain.Ledger, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	release, err := e.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	ledger := domain.NewLedger(userID)
	err = e.store.Ledgers().Create(ctx, &ledger)
	if errors.Is(err, domain.ErrLedgerExists) {
		existing, getErr := loadLedger(ctx, e.store.Ledgers(), userID)
		if getErr != nil {
			return nil, domain.AsStoreError(getErr)
		}
		return existing, nil
	}
	if err != nil {
		return nil, domain.AsStoreError(err)
	}
	logger.WithRequestID(ctx, e.logger).Info("ledger provisioned", zap.String("user_id", userID))
	return &ledger, nil
}

// ResetProgress deletes every task of the user and returns the ledger to
// its zero state in one transaction.
func (e *Engine) ResetProgress(ctx context.Context, userID string) (*domain.Ledger, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	release, err := e.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	var reset domain.Ledger
	var removed int
	err = e.store.Atomic(ctx, func(ctx context.Context, tasks repository.TaskRepository, ledgers repository.LedgerRepository) error {
		ledger, err := loadLedger(ctx, ledgers, userID)
		if err != nil {
			return err
		}
		if removed, err = tasks.DeleteByUser(ctx, userID); err != nil {
			return err
		}
		reset = ledger.Reset()
		return ledgers.Update(ctx, &reset)
	})
	if err != nil {
		e.reject(ctx, "reset", userID, err)
		return nil, domain.AsStoreError(err)
	}
	logger.WithRequestID(ctx, e.logger).Info("progress reset",
		zap.String("user_id", userID), zap.Int("tasks_removed", removed))
	return &reset, nil
}

// Ledger returns the user's ledger and level progress.
func (e *Engine) Ledger(ctx context.Context, userID string) (*LedgerView, error) {
	ledger, err := loadLedger(ctx, e.store.Ledgers(), userID)
	if err != nil {
		return nil, domain.AsStoreError(err)
	}
	return &LedgerView{Ledger: *ledger, Progress: ledger.Progress()}, nil
}

// Achievements evaluates the rule table for the user as of at.
func (e *Engine) Achievements(ctx context.Context, userID string, at time.Time) (*AchievementReport, error) {
	ledger, err := loadLedger(ctx, e.store.Ledgers(), userID)
	if err != nil {
		return nil, domain.AsStoreError(err)
	}
	today, err := e.store.Tasks().CountCompletedOn(ctx, userID, domain.DayOf(at))
	if err != nil {
		return nil, domain.AsStoreError(err)
	}
	statuses := domain.EvaluateAchievements(domain.Snapshot{Ledger: *ledger, CompletedToday: today})
	return &AchievementReport{
		Achievements: statuses,
		Summary:      domain.SummarizeAchievements(statuses),
	}, nil
}

// Leaderboard lists the ledgers with the most XP.
func (e *Engine) Leaderboard(ctx context.Context, limit int) ([]domain.Ledger, error) {
	if limit <= 0 {
		limit = 10
	}
	ledgers, err := e.store.Ledgers().Top(ctx, limit)
	if err != nil {
		return nil, domain.AsStoreError(err)
	}
	return ledgers, nil
}

func (e *Engine) lock(ctx context.Context, userID string) (func(), error) {
	if e.locker == nil {
		return func() {}, nil
	}
	release, err := e.locker.Lock(ctx, userID)
	if err != nil {
		var dErr *domain.Error
		if errors.As(err, &dErr) || ctx.Err() != nil {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrCodeConflict, "could not serialize update", err)
	}
	return release, nil
}

func (e *Engine) record(ctx context.Context, log *zap.Logger, events []domain.ProgressEvent) {
	if e.sink == nil || len(events) == 0 {
		return
	}
	if err := e.sink.Record(ctx, events); err != nil {
		log.Error("failed to record progression events", zap.Int("events", len(events)), zap.Error(err))
	}
}

func (e *Engine) reject(ctx context.Context, op, userID string, err error) {
	logger.WithRequestID(ctx, e.logger).Warn("progression operation rejected",
		zap.String("operation", op),
		zap.String("user_id", userID),
		zap.Error(err))
}

func ownedTask(ctx context.Context, tasks repository.TaskRepository, userID, taskID string) (*domain.Task, error) {
	task, err := tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.OwnedBy(userID) {
		return nil, domain.ErrForbidden
	}
	return task, nil
}

func loadLedger(ctx context.Context, ledgers repository.LedgerRepository, userID string) (*domain.Ledger, error) {
	ledger, err := ledgers.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := ledger.Validate(); err != nil {
		return nil, err
	}
	return ledger, nil
}
