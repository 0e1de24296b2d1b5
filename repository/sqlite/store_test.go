package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/questlog/domain"
	sqliteInfra "github.com/fastygo/questlog/internal/infrastructure/sqlite"
	"github.com/fastygo/questlog/repository"
	"github.com/fastygo/questlog/repository/sqlite"
	"github.com/fastygo/questlog/repository/storetest"
)

func newStore(t *testing.T) repository.Store {
	t.Helper()
	db, err := sqliteInfra.Open(context.Background(), sqliteInfra.MemoryPath, nil)
	require.NoError(t, err)
	store := sqlite.NewStore(db)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, newStore)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "questlog.db")

	db, err := sqliteInfra.Open(ctx, path, nil)
	require.NoError(t, err)
	store := sqlite.NewStore(db)
	ledger := domain.NewLedger("user-1")
	require.NoError(t, store.Ledgers().Create(ctx, &ledger))
	require.NoError(t, store.Close())

	db, err = sqliteInfra.Open(ctx, path, nil)
	require.NoError(t, err)
	store = sqlite.NewStore(db)
	defer store.Close()

	got, err := store.Ledgers().Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Level)
	assert.NoError(t, store.Ping(ctx))
}
