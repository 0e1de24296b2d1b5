// Package memory is an in-process record store. It backs the engine tests
// and the "memory" store driver.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/questlog/domain"
	"github.com/fastygo/questlog/repository"
)

type state struct {
	tasks   map[string]domain.Task
	order   map[string]int64
	ledgers map[string]domain.Ledger
	seq     int64
}

func newState() *state {
	return &state{
		tasks:   make(map[string]domain.Task),
		order:   make(map[string]int64),
		ledgers: make(map[string]domain.Ledger),
	}
}

func (s *state) clone() *state {
	c := &state{
		tasks:   make(map[string]domain.Task, len(s.tasks)),
		order:   make(map[string]int64, len(s.order)),
		ledgers: make(map[string]domain.Ledger, len(s.ledgers)),
		seq:     s.seq,
	}
	for k, v := range s.tasks {
		c.tasks[k] = v
	}
	for k, v := range s.order {
		c.order[k] = v
	}
	for k, v := range s.ledgers {
		c.ledgers[k] = v
	}
	return c
}

// Store keeps tasks and ledgers in maps guarded by one mutex.
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
	err   error
}

// New returns an empty store. A nil clock defaults to time.Now.
func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{state: newState(), now: now}
}

// SetError makes every subsequent call fail with err until cleared with nil.
func (s *Store) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Store) Tasks() repository.TaskRepository     { return &lockedTasks{s: s} }
func (s *Store) Ledgers() repository.LedgerRepository { return &lockedLedgers{s: s} }

// Atomic runs fn against a copy of the data and swaps it in on success.
func (s *Store) Atomic(ctx context.Context, fn repository.TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	draft := s.state.clone()
	if err := fn(ctx, &stateTasks{st: draft, now: s.now}, &stateLedgers{st: draft, now: s.now}); err != nil {
		return err
	}
	s.state = draft
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Store) Close() error { return nil }

func (s *Store) with(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	return fn(s.state)
}

type stateTasks struct {
	st  *state
	now func() time.Time
}

func (r *stateTasks) GetByID(_ context.Context, id string) (*domain.Task, error) {
	task, ok := r.st.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return &task, nil
}

func (r *stateTasks) List(_ context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	var tasks []domain.Task
	for _, task := range r.st.tasks {
		if filter.UserID != "" && task.UserID != filter.UserID {
			continue
		}
		switch filter.Status {
		case repository.StatusActive:
			if task.Completed {
				continue
			}
		case repository.StatusCompleted:
			if !task.Completed {
				continue
			}
		}
		tasks = append(tasks, task)
	}
	sort.Slice(tasks, func(i, j int) bool {
		return r.st.order[tasks[i].ID] > r.st.order[tasks[j].ID]
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(tasks) {
			return nil, nil
		}
		tasks = tasks[filter.Offset:]
	}
	if limit := repository.ClampLimit(filter.Limit); len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

func (r *stateTasks) CountCompletedOn(_ context.Context, userID string, day domain.Day) (int, error) {
	count := 0
	for _, task := range r.st.tasks {
		if task.UserID == userID && task.Completed && task.CompletedAt != nil && day.Contains(*task.CompletedAt) {
			count++
		}
	}
	return count, nil
}

func (r *stateTasks) Create(_ context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if _, exists := r.st.tasks[task.ID]; exists {
		return nil, domain.NewError(domain.ErrCodeConflict, "task already exists")
	}
	now := r.now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now
	r.st.seq++
	r.st.order[task.ID] = r.st.seq
	r.st.tasks[task.ID] = *task
	return task, nil
}

func (r *stateTasks) Update(_ context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}
	current, ok := r.st.tasks[task.ID]
	if !ok {
		return domain.ErrTaskNotFound
	}
	current.Title = task.Title
	current.Description = task.Description
	current.Completed = task.Completed
	current.DueDate = task.DueDate
	current.CompletedAt = task.CompletedAt
	current.UpdatedAt = r.now().UTC()
	r.st.tasks[task.ID] = current
	task.UpdatedAt = current.UpdatedAt
	return nil
}

func (r *stateTasks) Delete(_ context.Context, id string) error {
	if _, ok := r.st.tasks[id]; !ok {
		return domain.ErrTaskNotFound
	}
	delete(r.st.tasks, id)
	delete(r.st.order, id)
	return nil
}

func (r *stateTasks) DeleteByUser(_ context.Context, userID string) (int, error) {
	n := 0
	for id, task := range r.st.tasks {
		if task.UserID == userID {
			delete(r.st.tasks, id)
			delete(r.st.order, id)
			n++
		}
	}
	return n, nil
}

type stateLedgers struct {
	st  *state
	now func() time.Time
}

func (r *stateLedgers) Get(_ context.Context, userID string) (*domain.Ledger, error) {
	ledger, ok := r.st.ledgers[userID]
	if !ok {
		return nil, domain.ErrLedgerNotFound
	}
	return &ledger, nil
}

func (r *stateLedgers) Create(_ context.Context, ledger *domain.Ledger) error {
	if ledger == nil || ledger.UserID == "" {
		return domain.ErrInvalidPayload
	}
	if _, exists := r.st.ledgers[ledger.UserID]; exists {
		return domain.ErrLedgerExists
	}
	now := r.now().UTC()
	ledger.Version = 0
	ledger.CreatedAt = now
	ledger.UpdatedAt = now
	r.st.ledgers[ledger.UserID] = *ledger
	return nil
}

func (r *stateLedgers) Update(_ context.Context, ledger *domain.Ledger) error {
	if ledger == nil {
		return domain.ErrInvalidPayload
	}
	current, ok := r.st.ledgers[ledger.UserID]
	if !ok {
		return domain.ErrLedgerNotFound
	}
	if current.Version != ledger.Version {
		return domain.ErrLedgerConflict
	}
	ledger.Version++
	ledger.CreatedAt = current.CreatedAt
	ledger.UpdatedAt = r.now().UTC()
	r.st.ledgers[ledger.UserID] = *ledger
	return nil
}

func (r *stateLedgers) Top(_ context.Context, limit int) ([]domain.Ledger, error) {
	ledgers := make([]domain.Ledger, 0, len(r.st.ledgers))
	for _, l := range r.st.ledgers {
		ledgers = append(ledgers, l)
	}
	sort.Slice(ledgers, func(i, j int) bool {
		if ledgers[i].XP != ledgers[j].XP {
			return ledgers[i].XP > ledgers[j].XP
		}
		return ledgers[i].UserID < ledgers[j].UserID
	})
	if limit = repository.ClampLimit(limit); len(ledgers) > limit {
		ledgers = ledgers[:limit]
	}
	return ledgers, nil
}

// lockedTasks and lockedLedgers serialize direct (non-transactional) access.

type lockedTasks struct{ s *Store }

func (r *lockedTasks) repo(st *state) *stateTasks { return &stateTasks{st: st, now: r.s.now} }

func (r *lockedTasks) GetByID(ctx context.Context, id string) (task *domain.Task, err error) {
	err = r.s.with(func(st *state) error {
		task, err = r.repo(st).GetByID(ctx, id)
		return err
	})
	return task, err
}

func (r *lockedTasks) List(ctx context.Context, filter repository.TaskFilter) (tasks []domain.Task, err error) {
	err = r.s.with(func(st *state) error {
		tasks, err = r.repo(st).List(ctx, filter)
		return err
	})
	return tasks, err
}

func (r *lockedTasks) CountCompletedOn(ctx context.Context, userID string, day domain.Day) (n int, err error) {
	err = r.s.with(func(st *state) error {
		n, err = r.repo(st).CountCompletedOn(ctx, userID, day)
		return err
	})
	return n, err
}

func (r *lockedTasks) Create(ctx context.Context, task *domain.Task) (created *domain.Task, err error) {
	err = r.s.with(func(st *state) error {
		created, err = r.repo(st).Create(ctx, task)
		return err
	})
	return created, err
}

func (r *lockedTasks) Update(ctx context.Context, task *domain.Task) error {
	return r.s.with(func(st *state) error {
		return r.repo(st).Update(ctx, task)
	})
}

func (r *lockedTasks) Delete(ctx context.Context, id string) error {
	return r.s.with(func(st *state) error {
		return r.repo(st).Delete(ctx, id)
	})
}

func (r *lockedTasks) DeleteByUser(ctx context.Context, userID string) (n int, err error) {
	err = r.s.with(func(st *state) error {
		n, err = r.repo(st).DeleteByUser(ctx, userID)
		return err
	})
	return n, err
}

type lockedLedgers struct{ s *Store }

func (r *lockedLedgers) repo(st *state) *stateLedgers { return &stateLedgers{st: st, now: r.s.now} }

func (r *lockedLedgers) Get(ctx context.Context, userID string) (ledger *domain.Ledger, err error) {
	err = r.s.with(func(st *state) error {
		ledger, err = r.repo(st).Get(ctx, userID)
		return err
	})
	return ledger, err
}

func (r *lockedLedgers) Create(ctx context.Context, ledger *domain.Ledger) error {
	return r.s.with(func(st *state) error {
		return r.repo(st).Create(ctx, ledger)
	})
}

func (r *lockedLedgers) Update(ctx context.Context, ledger *domain.Ledger) error {
	return r.s.with(func(st *state) error {
		return r.repo(st).Update(ctx, ledger)
	})
}

func (r *lockedLedgers) Top(ctx context.Context, limit int) (ledgers []domain.Ledger, err error) {
	err = r.s.with(func(st *state) error {
		ledgers, err = r.repo(st).Top(ctx, limit)
		return err
	})
	return ledgers, err
}

var _ repository.Store = (*Store)(nil)
