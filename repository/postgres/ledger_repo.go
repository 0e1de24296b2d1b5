package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fastygo/questlog/domain"
	"github.com/fastygo/questlog/repository"
)

const ledgerColumns = `user_id, xp, level, tasks_completed, streak, longest_streak, last_task_date, version, created_at, updated_at`

type ledgerRepository struct {
	db querier
}

func (r *ledgerRepository) Get(ctx context.Context, userID string) (*domain.Ledger, error) {
	const query = `SELECT ` + ledgerColumns + ` FROM ledgers WHERE user_id = $1`
	return scanLedger(r.db.QueryRow(ctx, query, userID))
}

func (r *ledgerRepository) Create(ctx context.Context, ledger *domain.Ledger) error {
	if ledger == nil || ledger.UserID == "" {
		return domain.ErrInvalidPayload
	}

	const query = `
	INSERT INTO ledgers (user_id, xp, level, tasks_completed, streak, longest_streak, last_task_date, version)
	VALUES ($1, $2, $3, $4, $5, $6, $7, 0)
	ON CONFLICT (user_id) DO NOTHING
	RETURNING version, created_at, updated_at
	`

	if err := r.db.QueryRow(ctx, query,
		ledger.UserID,
		ledger.XP,
		ledger.Level,
		ledger.TasksCompleted,
		ledger.Streak,
		ledger.LongestStreak,
		nullDay(ledger.LastTaskDate),
	).Scan(&ledger.Version, &ledger.CreatedAt, &ledger.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrLedgerExists
		}
		return err
	}
	return nil
}

func (r *ledgerRepository) Update(ctx context.Context, ledger *domain.Ledger) error {
	if ledger == nil {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE ledgers
	SET xp = $3,
		level = $4,
		tasks_completed = $5,
		streak = $6,
		longest_streak = $7,
		last_task_date = $8,
		version = version + 1,
		updated_at = NOW()
	WHERE user_id = $1 AND version = $2
	RETURNING version, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		ledger.UserID,
		ledger.Version,
		ledger.XP,
		ledger.Level,
		ledger.TasksCompleted,
		ledger.Streak,
		ledger.LongestStreak,
		nullDay(ledger.LastTaskDate),
	).Scan(&ledger.Version, &ledger.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM ledgers WHERE user_id = $1)`, ledger.UserID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrLedgerNotFound
	}
	return domain.ErrLedgerConflict
}

func (r *ledgerRepository) Top(ctx context.Context, limit int) ([]domain.Ledger, error) {
	const query = `SELECT ` + ledgerColumns + ` FROM ledgers ORDER BY xp DESC, user_id LIMIT $1`
	rows, err := r.db.Query(ctx, query, repository.ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ledgers []domain.Ledger
	for rows.Next() {
		ledger, err := scanLedger(rows)
		if err != nil {
			return nil, err
		}
		ledgers = append(ledgers, *ledger)
	}
	return ledgers, rows.Err()
}

func scanLedger(row rowScanner) (*domain.Ledger, error) {
	var ledger domain.Ledger
	var last *time.Time

	if err := row.Scan(
		&ledger.UserID,
		&ledger.XP,
		&ledger.Level,
		&ledger.TasksCompleted,
		&ledger.Streak,
		&ledger.LongestStreak,
		&last,
		&ledger.Version,
		&ledger.CreatedAt,
		&ledger.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLedgerNotFound
		}
		return nil, err
	}

	ledger.LastTaskDate = dayFrom(last)
	return &ledger, nil
}
