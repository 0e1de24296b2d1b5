package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fastygo/questlog/domain"
	"github.com/fastygo/questlog/repository"
)

const ledgerColumns = `user_id, xp, level, tasks_completed, streak, longest_streak, last_task_date, version, created_at, updated_at`

type ledgerRepository struct {
	db  querier
	now func() time.Time
}

func (r *ledgerRepository) Get(ctx context.Context, userID string) (*domain.Ledger, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledgers WHERE user_id = ?`
	return scanLedger(r.db.QueryRowContext(ctx, query, userID))
}

func (r *ledgerRepository) Create(ctx context.Context, ledger *domain.Ledger) error {
	if ledger == nil || ledger.UserID == "" {
		return domain.ErrInvalidPayload
	}

	const query = `
	INSERT INTO ledgers (user_id, xp, level, tasks_completed, streak, longest_streak, last_task_date, version, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
	ON CONFLICT (user_id) DO NOTHING
	`

	now := r.now().UTC()
	res, err := r.db.ExecContext(ctx, query,
		ledger.UserID,
		ledger.XP,
		ledger.Level,
		ledger.TasksCompleted,
		ledger.Streak,
		ledger.LongestStreak,
		nullDay(ledger.LastTaskDate),
		toNanos(now),
		toNanos(now),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrLedgerExists
	}

	ledger.Version = 0
	ledger.CreatedAt = now
	ledger.UpdatedAt = now
	return nil
}

func (r *ledgerRepository) Update(ctx context.Context, ledger *domain.Ledger) error {
	if ledger == nil {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE ledgers
	SET xp = ?,
		level = ?,
		tasks_completed = ?,
		streak = ?,
		longest_streak = ?,
		last_task_date = ?,
		version = version + 1,
		updated_at = ?
	WHERE user_id = ? AND version = ?
	`

	now := r.now().UTC()
	res, err := r.db.ExecContext(ctx, query,
		ledger.XP,
		ledger.Level,
		ledger.TasksCompleted,
		ledger.Streak,
		ledger.LongestStreak,
		nullDay(ledger.LastTaskDate),
		toNanos(now),
		ledger.UserID,
		ledger.Version,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		ledger.Version++
		ledger.UpdatedAt = now
		return nil
	}

	var exists int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledgers WHERE user_id = ?`, ledger.UserID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return domain.ErrLedgerNotFound
	}
	return domain.ErrLedgerConflict
}

func (r *ledgerRepository) Top(ctx context.Context, limit int) ([]domain.Ledger, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledgers ORDER BY xp DESC, user_id LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, repository.ClampLimit(limit))
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
	var (
		last               sql.NullString
		createdAt, updated int64
	)

	if err := row.Scan(
		&ledger.UserID,
		&ledger.XP,
		&ledger.Level,
		&ledger.TasksCompleted,
		&ledger.Streak,
		&ledger.LongestStreak,
		&last,
		&ledger.Version,
		&createdAt,
		&updated,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLedgerNotFound
		}
		return nil, err
	}

	day, err := parseDay(last)
	if err != nil {
		return nil, err
	}
	ledger.LastTaskDate = day
	ledger.CreatedAt = fromNanos(createdAt)
	ledger.UpdatedAt = fromNanos(updated)
	return &ledger, nil
}
