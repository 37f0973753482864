package tier

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/curate/errors"
)

func TestLocalBackend_PublishAndGet(t *testing.T) {
	ctx := context.Background()
	b, err := NewLocalBackend(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "raw/run_id=r1/raw.jsonl", []byte("first")))

	data, err := b.Get(ctx, "raw/run_id=r1/raw.jsonl")
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
	assert.Equal(t, filepath.Join(b.Root(), "raw", "run_id=r1", "raw.jsonl"), b.Location("raw/run_id=r1/raw.jsonl"))
}

func TestLocalBackend_NeverOverwrites(t *testing.T) {
	ctx := context.Background()
	b, err := NewLocalBackend(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "raw/run_id=r1/raw.jsonl", []byte("first")))
	require.NoError(t, b.Publish(ctx, "raw/run_id=r1/raw.jsonl", []byte("second")), "republish is an idempotent success")

	data, err := b.Get(ctx, "raw/run_id=r1/raw.jsonl")
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	entries, err := os.ReadDir(filepath.Join(b.Root(), "raw", "run_id=r1"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestLocalBackend_GetMissing(t *testing.T) {
	b, err := NewLocalBackend(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = b.Get(context.Background(), "raw/run_id=nope/raw.jsonl")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestLocalBackend_InvalidKeys(t *testing.T) {
	b, err := NewLocalBackend(t.TempDir(), nil)
	require.NoError(t, err)

	for _, key := range []string{"", "/etc/passwd", "../escape", "a/../../b", "a//b"} {
		assert.Error(t, b.Publish(context.Background(), key, []byte("x")), key)
	}
}

func TestLocalBackend_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	b, err := NewLocalBackend(t.TempDir(), nil)
	require.NoError(t, err)

	for _, key := range []string{
		"raw/run_id=r1/raw.jsonl",
		"accepted/run_id=r1/accepted.jsonl",
		"curated/date=2025-03-01/run_id=r1.jsonl",
		"curated/date=2025-03-01/run_id=r2.jsonl",
	} {
		require.NoError(t, b.Publish(ctx, key, []byte(key)))
	}

	keys, err := b.List(ctx, "curated/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"curated/date=2025-03-01/run_id=r1.jsonl",
		"curated/date=2025-03-01/run_id=r2.jsonl",
	}, keys)

	keys, err = b.List(ctx, "curated/date=2025-03-01/run_id=r2")
	require.NoError(t, err)
	assert.Equal(t, []string{"curated/date=2025-03-01/run_id=r2.jsonl"}, keys)

	keys, err = b.List(ctx, "rejected/")
	require.NoError(t, err)
	assert.Empty(t, keys)

	all, err := b.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	require.NoError(t, b.Delete(ctx, "accepted/run_id=r1/accepted.jsonl"))
	require.NoError(t, b.Delete(ctx, "accepted/run_id=r1/accepted.jsonl"), "deleting a missing key is fine")
	all, err = b.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLocalBackend_SweepsStaleTemps(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "raw", "run_id=r1")
	require.NoError(t, os.MkdirAll(dir, 0755))

	stale := filepath.Join(dir, tempPrefix+"stale")
	fresh := filepath.Join(dir, tempPrefix+"fresh")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0644))
	old := time.Now().Add(-2 * staleTempAge)
	require.NoError(t, os.Chtimes(stale, old, old))

	b, err := NewLocalBackend(root, nil)
	require.NoError(t, err)

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "stale temp removed")
	_, err = os.Stat(fresh)
	assert.NoError(t, err, "a temp file may belong to an in-flight publish")

	keys, err := b.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, keys, "temp files are never listed")
}
