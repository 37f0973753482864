package tier

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/teranos/curate/errors"
)

func TestOrphansAndPurge(t *testing.T) {
	ctx := context.Background()
	b, err := NewLocalBackend(t.TempDir(), nil)
	require.NoError(t, err)
	w := NewWriter(b, JSONLCodec{}, nil)

	raw, validated := sampleBatch()
	_, err = w.Write(ctx, "failed-run", raw, validated)
	require.NoError(t, err)
	_, err = w.Write(ctx, "good-run", raw, validated)
	require.NoError(t, err)

	keys, err := Orphans(ctx, b, []string{"failed-run"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"accepted/run_id=failed-run/accepted.jsonl",
		"curated/date=2025-03-01/run_id=failed-run.jsonl",
		"curated/date=2025-03-02/run_id=failed-run.jsonl",
		"raw/run_id=failed-run/raw.jsonl",
		"rejected/run_id=failed-run/rejected.jsonl",
	}, keys)

	deleted, err := PurgeOrphans(ctx, b, []string{"failed-run"})
	require.NoError(t, err)
	assert.Len(t, deleted, 4)

	keys, err = Orphans(ctx, b, []string{"failed-run"})
	require.NoError(t, err)
	assert.Equal(t, []string{"raw/run_id=failed-run/raw.jsonl"}, keys, "raw tier survives purge")

	good, err := Orphans(ctx, b, []string{"good-run"})
	require.NoError(t, err)
	assert.Len(t, good, 5, "other runs untouched")

	none, err := Orphans(ctx, b, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTierOf(t *testing.T) {
	assert.Equal(t, TierRaw, TierOf("raw/run_id=x/raw.parquet"))
	assert.Equal(t, TierCurated, TierOf("curated/date=2025-03-01/run_id=x.parquet"))
}

func TestIsPreconditionFailed(t *testing.T) {
	assert.True(t, isPreconditionFailed(&googleapi.Error{Code: http.StatusPreconditionFailed}))
	assert.True(t, isPreconditionFailed(errors.Wrap(&googleapi.Error{Code: 412}, "close writer")))
	assert.False(t, isPreconditionFailed(&googleapi.Error{Code: http.StatusForbidden}))
	assert.False(t, isPreconditionFailed(errors.New("network down")))
}

func TestGCSBackend_ObjectNames(t *testing.T) {
	b := &GCSBackend{name: "bucket", prefix: "datasets/text"}
	assert.Equal(t, "datasets/text/raw/run_id=r/raw.parquet", b.objectName("raw/run_id=r/raw.parquet"))
	assert.Equal(t, "gs://bucket/datasets/text/raw/run_id=r/raw.parquet", b.Location("raw/run_id=r/raw.parquet"))

	bare := &GCSBackend{name: "bucket"}
	assert.Equal(t, "gs://bucket/curated/date=2025-03-01/run_id=r.jsonl", bare.Location("curated/date=2025-03-01/run_id=r.jsonl"))
}
