package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestStorage_PutGet(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	in := doc{Name: "settings", Count: 3}
	require.NoError(t, store.Put(ctx, []string{"settings", "planstudio"}, in))

	var out doc
	require.NoError(t, store.Get(ctx, []string{"settings", "planstudio"}, &out))
	assert.Equal(t, in, out)
}

func TestStorage_GetMissing(t *testing.T) {
	store := New(t.TempDir())

	var out doc
	err := store.Get(context.Background(), []string{"nope"}, &out)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStorage_Delete(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, []string{"project", "p1"}, doc{Name: "p1"}))
	assert.True(t, store.Exists(ctx, []string{"project", "p1"}))

	require.NoError(t, store.Delete(ctx, []string{"project", "p1"}))
	assert.False(t, store.Exists(ctx, []string{"project", "p1"}))

	// Deleting again is not an error.
	assert.NoError(t, store.Delete(ctx, []string{"project", "p1"}))
}

func TestStorage_List(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, []string{"project", "a"}, doc{}))
	require.NoError(t, store.Put(ctx, []string{"project", "b"}, doc{}))

	keys, err := store.List(ctx, []string{"project"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)

	empty, err := store.List(ctx, []string{"missing"})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStorage_AtomicWriteLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, []string{"settings"}, doc{Name: "x"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestFileLock_TryLock(t *testing.T) {
	path := t.TempDir() + "/doc.json"
	lock := NewFileLock(path)

	require.True(t, lock.TryLock())
	assert.False(t, lock.TryLock())
	require.NoError(t, lock.Unlock())
	assert.True(t, lock.TryLock())
	require.NoError(t, lock.Unlock())
}
