package storage

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutExistsDelete(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "alice/a.pdf", strings.NewReader("%PDF-1.4"), "application/pdf"))

	ok, err := store.Exists(ctx, "alice/a.pdf")
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := os.ReadFile(filepath.Join(store.BasePath(), "alice", "a.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	require.NoError(t, store.Delete(ctx, "alice/a.pdf"))
	ok, err = store.Exists(ctx, "alice/a.pdf")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalStore_DeleteMissingIsNoop(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.Delete(context.Background(), "nobody/nothing.pdf"))
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	err = store.Put(context.Background(), "../escape.pdf", strings.NewReader("x"), "")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = store.Exists(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestLocalStore_ListAndDeletePrefix(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"alice/1.pdf", "alice/2.pdf", "bob/1.pdf"} {
		require.NoError(t, store.Put(ctx, key, strings.NewReader("x"), ""))
	}

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	sort.Strings(all)
	assert.Equal(t, []string{"alice/1.pdf", "alice/2.pdf", "bob/1.pdf"}, all)

	require.NoError(t, store.DeletePrefix(ctx, "alice"))

	remaining, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob/1.pdf"}, remaining)

	missing, err := store.List(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, missing)
}
