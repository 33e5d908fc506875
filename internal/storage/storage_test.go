package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ignite/verifyhub/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	body := "email,result\na@example.com,deliverable\n"
	err = store.Put(context.Background(), "results/job-1.csv", strings.NewReader(body))
	require.NoError(t, err)

	rc, err := store.Get(context.Background(), "results/job-1.csv")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
}

func TestLocalStoreMissingKey(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "results/nope.csv")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestLocalStoreOverwriteIsAtomic(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), "k.csv", strings.NewReader("v1")))
	require.NoError(t, store.Put(context.Background(), "k.csv", strings.NewReader("v2")))

	rc, err := store.Get(context.Background(), "k.csv")
	require.NoError(t, err)
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "v2", string(data))

	// No temp files left behind.
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".archive-"), "leftover temp file %s", e.Name())
	}
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../escape.csv", "/abs/path.csv", "a/../../b.csv"} {
		err := store.Put(context.Background(), key, strings.NewReader("x"))
		assert.Error(t, err, "key %q must be rejected", key)
	}
}

func TestLocalStoreNestedKeys(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), "results/2026/job-9.csv", strings.NewReader("x")))
	_, err = os.Stat(filepath.Join(root, "results", "2026", "job-9.csv"))
	assert.NoError(t, err)
}

func TestNewSelectsBackend(t *testing.T) {
	store, err := New(config.StorageConfig{Type: "local", LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, store)

	_, err = New(config.StorageConfig{Type: "tape"})
	assert.Error(t, err)

	_, err = New(config.StorageConfig{Type: "s3"})
	assert.Error(t, err, "s3 without a bucket must fail")
}
