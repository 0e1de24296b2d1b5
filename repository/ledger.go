package repository

import (
	"context"

	"github.com/fastygo/questlog/domain"
)

type LedgerRepository interface {
	Get(ctx context.Context, userID string) (*domain.Ledger, error)
	// Create inserts a fresh ledger and fails with ErrLedgerExists when the
	// user already has one.
	Create(ctx context.Context, ledger *domain.Ledger) error
	// Update writes the ledger only if the stored version equals
	// ledger.Version, then bumps the version. A mismatch yields
	// ErrLedgerConflict.
	Update(ctx context.Context, ledger *domain.Ledger) error
	Top(ctx context.Context, limit int) ([]domain.Ledger, error)
}
