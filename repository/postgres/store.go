package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/questlog/repository"
)

type store struct {
	pool    *pgxpool.Pool
	tasks   *taskRepository
	ledgers *ledgerRepository
}

// NewStore wraps a pgx pool as a record store. Closing the store closes the
// pool.
func NewStore(pool *pgxpool.Pool) repository.Store {
	return &store{
		pool:    pool,
		tasks:   &taskRepository{db: pool},
		ledgers: &ledgerRepository{db: pool},
	}
}

func (s *store) Tasks() repository.TaskRepository     { return s.tasks }
func (s *store) Ledgers() repository.LedgerRepository { return s.ledgers }

func (s *store) Atomic(ctx context.Context, fn repository.TxFunc) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &taskRepository{db: tx}, &ledgerRepository{db: tx})
	})
}

func (s *store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *store) Close() error {
	s.pool.Close()
	return nil
}
