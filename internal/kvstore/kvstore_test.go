// Package kvstore_test tests both key-value backends against the same contract.
package kvstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/book-expert/tts-editor/internal/core"
	"github.com/book-expert/tts-editor/internal/kvstore"
	"github.com/book-expert/tts-editor/internal/natstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]core.KVStore {
	t.Helper()

	jetstreamContext, _ := natstest.JetStream(t)

	natsStore, err := kvstore.NewNatsKV(jetstreamContext, "test-records")
	require.NoError(t, err)

	sqliteStore, err := kvstore.OpenSQLite(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })

	return map[string]core.KVStore{
		"nats":   natsStore,
		"sqlite": sqliteStore,
	}
}

func TestKVStore_Contract(t *testing.T) {
	t.Parallel()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Get(ctx, "settings")
			require.ErrorIs(t, err, core.ErrNotFound)

			require.NoError(t, store.Set(ctx, "settings", []byte(`{"a":1}`)))
			require.NoError(t, store.Set(ctx, "settings", []byte(`{"a":2}`)))
			require.NoError(t, store.Set(ctx, "11111111-1111-4111-8111-111111111111", []byte(`{}`)))

			value, err := store.Get(ctx, "settings")
			require.NoError(t, err)
			assert.JSONEq(t, `{"a":2}`, string(value))

			keys, err := store.Keys(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"settings", "11111111-1111-4111-8111-111111111111"}, keys)

			require.NoError(t, store.Remove(ctx, "settings"))
			require.NoError(t, store.Remove(ctx, "settings"), "removing an absent key is not an error")

			_, err = store.Get(ctx, "settings")
			require.ErrorIs(t, err, core.ErrNotFound)

			require.NoError(t, store.Clear(ctx))

			keys, err = store.Keys(ctx)
			require.NoError(t, err)
			assert.Empty(t, keys)
		})
	}
}

func TestNatsKV_BindsExistingBucket(t *testing.T) {
	t.Parallel()

	jetstreamContext, _ := natstest.JetStream(t)
	ctx := context.Background()

	first, err := kvstore.NewNatsKV(jetstreamContext, "shared")
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "settings", []byte("x")))

	second, err := kvstore.NewNatsKV(jetstreamContext, "shared")
	require.NoError(t, err)

	value, err := second.Get(ctx, "settings")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), value)
}

func TestSQLiteKV_Durable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "records.db")
	ctx := context.Background()

	store, err := kvstore.OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "settings", []byte("persisted")))
	require.NoError(t, store.Close())

	reopened, err := kvstore.OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	value, err := reopened.Get(ctx, "settings")
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), value)
}
