package repository

import "context"

// TxFunc runs inside a store transaction. The repositories it receives are
// bound to that transaction.
type TxFunc func(ctx context.Context, tasks TaskRepository, ledgers LedgerRepository) error

// Store is the record store used by the progression engine.
type Store interface {
	Tasks() TaskRepository
	Ledgers() LedgerRepository
	// Atomic commits every write made by fn or none of them.
	Atomic(ctx context.Context, fn TxFunc) error
	Ping(ctx context.Context) error
	Close() error
}
