package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runBlobStoreTests(t *testing.T, store BlobStore) {
	t.Helper()
	ctx := context.Background()

	info, err := store.Put(ctx, "image/jpeg", strings.NewReader("fake jpeg bytes"))
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, int64(15), info.Size)
	assert.Equal(t, "image/jpeg", info.ContentType)

	rc, got, err := store.Open(ctx, info.ID)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "fake jpeg bytes", string(data))
	assert.Equal(t, info.ID, got.ID)

	_, _, err = store.Open(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Delete(ctx, info.ID))
	_, _, err = store.Open(ctx, info.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, info.ID), ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	runBlobStoreTests(t, NewMemoryStore())
}

func TestFSStore(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	runBlobStoreTests(t, store)
}
