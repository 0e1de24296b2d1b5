package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/fastygo/questlog/repository"
)

type store struct {
	db      *sql.DB
	now     func() time.Time
	tasks   *taskRepository
	ledgers *ledgerRepository
}

// NewStore wraps an opened SQLite database as a record store. The schema is
// expected to be applied already.
func NewStore(db *sql.DB) repository.Store {
	now := time.Now
	return &store{
		db:      db,
		now:     now,
		tasks:   &taskRepository{db: db, now: now},
		ledgers: &ledgerRepository{db: db, now: now},
	}
}

func (s *store) Tasks() repository.TaskRepository     { return s.tasks }
func (s *store) Ledgers() repository.LedgerRepository { return s.ledgers }

func (s *store) Atomic(ctx context.Context, fn repository.TxFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(ctx, &taskRepository{db: tx, now: s.now}, &ledgerRepository{db: tx, now: s.now}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *store) Close() error {
	return s.db.Close()
}
