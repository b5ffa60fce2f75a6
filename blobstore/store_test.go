package blobstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStoreLifecycle(t *testing.T, store BlobStore) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	data := []byte("checkpoint payload")
	require.NoError(t, store.Put(ctx, "run/ckpt-000000001", data))
	require.NoError(t, store.Put(ctx, "run/ckpt-000000002", []byte("second")))
	require.NoError(t, store.Put(ctx, "run/CURRENT", []byte("ckpt-000000002")))
	require.NoError(t, store.Put(ctx, "other", []byte("x")))

	got, err := store.Get(ctx, "run/ckpt-000000001")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// Overwrite replaces the content.
	require.NoError(t, store.Put(ctx, "run/CURRENT", []byte("ckpt-000000001")))
	got, err = store.Get(ctx, "run/CURRENT")
	require.NoError(t, err)
	assert.Equal(t, "ckpt-000000001", string(got))

	names, err := store.List(ctx, "run/ckpt-")
	require.NoError(t, err)
	assert.Equal(t, []string{"run/ckpt-000000001", "run/ckpt-000000002"}, names)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	require.NoError(t, store.Delete(ctx, "run/ckpt-000000001"))
	require.NoError(t, store.Delete(ctx, "run/ckpt-000000001"), "deleting twice is fine")
	_, err = store.Get(ctx, "run/ckpt-000000001")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	testStoreLifecycle(t, NewMemoryStore())
}

func TestMemoryStore_CopiesData(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	data := []byte("abc")
	require.NoError(t, store.Put(ctx, "a", data))
	data[0] = 'x'

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[1] = 'y'
	again, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestLocalStore_Lifecycle(t *testing.T) {
	testStoreLifecycle(t, NewLocalStore(t.TempDir()))
}

func TestLocalStore_AtomicPut(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewLocalStore(dir)

	require.NoError(t, store.Put(ctx, "blob", []byte("v1")))
	require.NoError(t, store.Put(ctx, "blob", []byte("v2")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temporary files are left behind")
	assert.Equal(t, "blob", entries[0].Name())

	raw, err := os.ReadFile(filepath.Join(dir, "blob"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(raw))
}

func TestLocalStore_ListMissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "not-created"))
	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLocalStore_SkipsTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tmp-blob-123"), []byte("partial"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blob"), []byte("done"), 0o644))

	names, err := NewLocalStore(dir).List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"blob"}, names)
}

func TestLocalStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewLocalStore(t.TempDir())
	assert.ErrorIs(t, store.Put(ctx, "a", []byte("x")), context.Canceled)
	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}
