package outbox_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/questlog/domain"
	"github.com/fastygo/questlog/internal/infrastructure/outbox"
)

func openStore(t *testing.T) *outbox.Store {
	t.Helper()
	store, err := outbox.Open(filepath.Join(t.TempDir(), "nested", "outbox.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func event(id string, kind domain.EventKind) domain.ProgressEvent {
	return domain.ProgressEvent{ID: id, Kind: kind, UserID: "user-1", TaskID: "task-1", OccurredAt: time.Now().UTC()}
}

func TestStore_AppendKeepsOrder(t *testing.T) {
	store := openStore(t)

	require.NoError(t, store.Append(
		event("e1", domain.EventLevelUp),
		event("e2", domain.EventAchievementUnlocked),
		event("e3", domain.EventAchievementUnlocked),
	))

	size, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, 3, size)

	batch, err := store.GetBatch(2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "e1", batch[0].Event.ID)
	assert.Equal(t, "e2", batch[1].Event.ID)
	assert.Equal(t, domain.EventLevelUp, batch[0].Event.Kind)
}

func TestStore_RemoveAndRequeue(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.Append(event("e1", domain.EventLevelUp), event("e2", domain.EventLevelUp)))

	batch, err := store.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, batch, 2)

	require.NoError(t, store.Requeue(batch[0]))
	require.NoError(t, store.Remove(batch[1]))

	batch, err = store.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "e1", batch[0].Event.ID)
	assert.Equal(t, 1, batch[0].Attempts)
}

func TestStore_Cleanup(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.Append(event("old", domain.EventLevelUp)))

	removed, err := store.Cleanup(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	size, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, 0, size)
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.db")
	store, err := outbox.Open(path, "")
	require.NoError(t, err)
	require.NoError(t, store.Append(event("e1", domain.EventLevelUp)))
	require.NoError(t, store.Close())

	store, err = outbox.Open(path, "")
	require.NoError(t, err)
	defer store.Close()

	size, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestStore_NilIsClosed(t *testing.T) {
	var store *outbox.Store
	assert.Error(t, store.Append(event("e1", domain.EventLevelUp)))
	_, err := store.Size()
	assert.Error(t, err)
	assert.NoError(t, store.Close())
}
