// Package breaker guards a record store with a circuit breaker so a failing
// backend is reported as unavailable immediately instead of on every timeout.
package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/fastygo/questlog/domain"
	"github.com/fastygo/questlog/repository"
)

// Config mirrors config.BreakerConfig.
type Config struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// Store decorates another store. Domain errors (not found, conflict, ...)
// count as successes; only infrastructure failures trip the breaker.
type Store struct {
	next    repository.Store
	cb      *gobreaker.CircuitBreaker[any]
	tasks   *tasks
	ledgers *ledgers
}

func New(next repository.Store, cfg Config, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Name == "" {
		cfg.Name = "record-store"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var dErr *domain.Error
			return errors.As(err, &dErr) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	s := &Store{next: next, cb: gobreaker.NewCircuitBreaker[any](settings)}
	s.tasks = &tasks{s: s}
	s.ledgers = &ledgers{s: s}
	return s
}

// State exposes the breaker state for health reporting.
func (s *Store) State() gobreaker.State {
	return s.cb.State()
}

func (s *Store) Tasks() repository.TaskRepository     { return s.tasks }
func (s *Store) Ledgers() repository.LedgerRepository { return s.ledgers }

// Atomic runs the whole transaction as one breaker call. The repositories
// handed to fn are the underlying transactional ones.
func (s *Store) Atomic(ctx context.Context, fn repository.TxFunc) error {
	_, err := call(s, func() (struct{}, error) {
		return struct{}{}, s.next.Atomic(ctx, fn)
	})
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := call(s, func() (struct{}, error) {
		return struct{}{}, s.next.Ping(ctx)
	})
	return err
}

func (s *Store) Close() error {
	return s.next.Close()
}

func call[T any](s *Store, fn func() (T, error)) (T, error) {
	out, err := s.cb.Execute(func() (any, error) {
		v, err := fn()
		return v, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, domain.WrapError(domain.ErrCodeStoreUnavailable, domain.ErrStoreUnavailable.Message, err)
	}
	value, _ := out.(T)
	return value, err
}

type tasks struct{ s *Store }

func (r *tasks) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	return call(r.s, func() (*domain.Task, error) { return r.s.next.Tasks().GetByID(ctx, id) })
}

func (r *tasks) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	return call(r.s, func() ([]domain.Task, error) { return r.s.next.Tasks().List(ctx, filter) })
}

func (r *tasks) CountCompletedOn(ctx context.Context, userID string, day domain.Day) (int, error) {
	return call(r.s, func() (int, error) { return r.s.next.Tasks().CountCompletedOn(ctx, userID, day) })
}

func (r *tasks) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	return call(r.s, func() (*domain.Task, error) { return r.s.next.Tasks().Create(ctx, task) })
}

func (r *tasks) Update(ctx context.Context, task *domain.Task) error {
	_, err := call(r.s, func() (struct{}, error) { return struct{}{}, r.s.next.Tasks().Update(ctx, task) })
	return err
}

func (r *tasks) Delete(ctx context.Context, id string) error {
	_, err := call(r.s, func() (struct{}, error) { return struct{}{}, r.s.next.Tasks().Delete(ctx, id) })
	return err
}

func (r *tasks) DeleteByUser(ctx context.Context, userID string) (int, error) {
	return call(r.s, func() (int, error) { return r.s.next.Tasks().DeleteByUser(ctx, userID) })
}

type ledgers struct{ s *Store }

func (r *ledgers) Get(ctx context.Context, userID string) (*domain.Ledger, error) {
	return call(r.s, func() (*domain.Ledger, error) { return r.s.next.Ledgers().Get(ctx, userID) })
}

func (r *ledgers) Create(ctx context.Context, ledger *domain.Ledger) error {
	_, err := call(r.s, func() (struct{}, error) { return struct{}{}, r.s.next.Ledgers().Create(ctx, ledger) })
	return err
}

func (r *ledgers) Update(ctx context.Context, ledger *domain.Ledger) error {
	_, err := call(r.s, func() (struct{}, error) { return struct{}{}, r.s.next.Ledgers().Update(ctx, ledger) })
	return err
}

func (r *ledgers) Top(ctx context.Context, limit int) ([]domain.Ledger, error) {
	return call(r.s, func() ([]domain.Ledger, error) { return r.s.next.Ledgers().Top(ctx, limit) })
}

var _ repository.Store = (*Store)(nil)
