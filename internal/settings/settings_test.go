package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planstudio-ai/planstudio/internal/storage"
)

func TestFile_SetGet(t *testing.T) {
	store := storage.New(t.TempDir())
	repo, err := NewFile(store)
	require.NoError(t, err)

	_, ok := repo.Get("theme")
	assert.False(t, ok)

	require.NoError(t, repo.Set("theme", "dark"))

	v, ok := repo.Get("theme")
	assert.True(t, ok)
	assert.Equal(t, "dark", v)
}

func TestFile_SurvivesReload(t *testing.T) {
	dir := t.TempDir()
	store := storage.New(dir)

	repo, err := NewFile(store)
	require.NoError(t, err)
	require.NoError(t, repo.Set("plannerId", "default"))
	require.NoError(t, repo.Set("autoFollow", true))

	// A fresh repository over the same directory sees the persisted map.
	reloaded, err := NewFile(storage.New(dir))
	require.NoError(t, err)

	v, ok := reloaded.Get("plannerId")
	assert.True(t, ok)
	assert.Equal(t, "default", v)

	v, ok = reloaded.Get("autoFollow")
	assert.True(t, ok)
	assert.Equal(t, true, v)
}

func TestFile_All(t *testing.T) {
	repo, err := NewFile(storage.New(t.TempDir()))
	require.NoError(t, err)

	require.NoError(t, repo.Set("a", "1"))

	all := repo.All()
	assert.Equal(t, map[string]any{"a": "1"}, all)

	// Mutating the copy does not affect the repository.
	all["a"] = "2"
	v, _ := repo.Get("a")
	assert.Equal(t, "1", v)
}

func TestFile_ReloadDiff(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewFile(storage.New(dir))
	require.NoError(t, err)
	require.NoError(t, repo.Set("keep", "same"))
	require.NoError(t, repo.Set("change", "old"))

	// Simulate an external writer updating the same file.
	writer, err := NewFile(storage.New(dir))
	require.NoError(t, err)
	require.NoError(t, writer.Set("change", "new"))
	require.NoError(t, writer.Set("added", 1))

	changed := repo.reload()
	assert.Contains(t, changed, "change")
	assert.Contains(t, changed, "added")
	assert.NotContains(t, changed, "keep")

	v, _ := repo.Get("change")
	assert.Equal(t, "new", v)
}
