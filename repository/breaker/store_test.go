package breaker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/questlog/domain"
	"github.com/fastygo/questlog/repository"
	"github.com/fastygo/questlog/repository/breaker"
	"github.com/fastygo/questlog/repository/memory"
	"github.com/fastygo/questlog/repository/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repository.Store {
		return breaker.New(memory.New(nil), breaker.Config{FailureThreshold: 3}, nil)
	})
}

func TestBreaker_OpensOnInfrastructureFailures(t *testing.T) {
	ctx := context.Background()
	inner := memory.New(nil)
	store := breaker.New(inner, breaker.Config{FailureThreshold: 3, Timeout: time.Minute}, nil)

	inner.SetError(errors.New("connection reset"))
	for i := 0; i < 3; i++ {
		_, err := store.Ledgers().Get(ctx, "user-1")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, store.State())

	inner.SetError(nil)
	_, err := store.Ledgers().Get(ctx, "user-1")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeStoreUnavailable))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestBreaker_DomainErrorsDoNotTrip(t *testing.T) {
	ctx := context.Background()
	store := breaker.New(memory.New(nil), breaker.Config{FailureThreshold: 2}, nil)

	for i := 0; i < 5; i++ {
		_, err := store.Tasks().GetByID(ctx, "missing")
		assert.True(t, errors.Is(err, domain.ErrTaskNotFound))
	}
	assert.Equal(t, gobreaker.StateClosed, store.State())
}

func TestBreaker_AtomicIsOneCall(t *testing.T) {
	ctx := context.Background()
	inner := memory.New(nil)
	store := breaker.New(inner, breaker.Config{FailureThreshold: 1}, nil)

	ledger := domain.NewLedger("user-1")
	require.NoError(t, store.Ledgers().Create(ctx, &ledger))

	err := store.Atomic(ctx, func(ctx context.Context, _ repository.TaskRepository, ledgers repository.LedgerRepository) error {
		_, err := ledgers.Get(ctx, "user-1")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, store.State())
}
