package tier

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/curate/record"
)

func codecs(t *testing.T) map[string]Codec {
	return map[string]Codec{
		"jsonl":   JSONLCodec{},
		"parquet": NewParquetCodec(t.TempDir()),
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	ctx := context.Background()
	raw, validated := sampleBatch()
	accepted, rejected := record.Partition(validated)

	for name, c := range codecs(t) {
		t.Run(name, func(t *testing.T) {
			data, err := c.Encode(ctx, TierRaw, rawRows(raw))
			require.NoError(t, err)
			rows, err := c.Decode(ctx, TierRaw, data)
			require.NoError(t, err)
			require.Len(t, rows, len(raw))
			for i := range raw {
				assert.Equal(t, raw[i], rows[i].Raw)
				assert.Empty(t, rows[i].Status, "raw tier carries no verdict")
			}

			data, err = c.Encode(ctx, TierAccepted, accepted)
			require.NoError(t, err)
			rows, err = c.Decode(ctx, TierAccepted, data)
			require.NoError(t, err)
			assert.Equal(t, accepted, rows)

			data, err = c.Encode(ctx, TierRejected, rejected)
			require.NoError(t, err)
			rows, err = c.Decode(ctx, TierRejected, data)
			require.NoError(t, err)
			assert.Equal(t, rejected, rows)
		})
	}
}

func TestCodec_EmptyTierKeepsSchema(t *testing.T) {
	ctx := context.Background()
	for name, c := range codecs(t) {
		t.Run(name, func(t *testing.T) {
			data, err := c.Encode(ctx, TierRejected, nil)
			require.NoError(t, err)
			rows, err := c.Decode(ctx, TierRejected, data)
			require.NoError(t, err)
			assert.Empty(t, rows)
		})
	}
}

func TestCodec_Deterministic(t *testing.T) {
	ctx := context.Background()
	_, validated := sampleBatch()
	c := JSONLCodec{}

	a, err := c.Encode(ctx, TierAccepted, validated)
	require.NoError(t, err)
	b, err := c.Encode(ctx, TierAccepted, validated)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestJSONLCodec_Columns(t *testing.T) {
	ctx := context.Background()
	r := sampleRaw("x", time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), "<b>html & stuff</b>")

	data, err := JSONLCodec{}.Encode(ctx, TierRejected, []record.Validated{record.Reject(r, record.ReasonProfanity)})
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	assert.Equal(t,
		`{"id":"x","ingest_ts":"2025-03-01T10:00:00Z","text":"<b>html & stuff</b>","source":"web","domain":"news","category":"ai","text_len":19,"status":"rejected","failure_reason":"profanity"}`,
		line)

	data, err = JSONLCodec{}.Encode(ctx, TierRaw, rawRows([]record.Raw{r}))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "status")
}

func TestCodec_RawTierKeepsCaptureTimeAsReceived(t *testing.T) {
	ctx := context.Background()
	const ts = "2025-03-01T10:00:00.123456789+02:00"
	r, err := record.Decode([]byte(`{"id":"x","ingest_ts":"`+ts+`","text":"hello there","source":"web","domain":"news","category":"ai"}`), time.Now())
	require.NoError(t, err)

	for name, c := range codecs(t) {
		t.Run(name, func(t *testing.T) {
			data, err := c.Encode(ctx, TierRaw, rawRows([]record.Raw{r}))
			require.NoError(t, err)
			rows, err := c.Decode(ctx, TierRaw, data)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, ts, rows[0].IngestTSText)
			assert.Equal(t, time.Date(2025, 3, 1, 8, 0, 0, 123456000, time.UTC), rows[0].IngestTS.Truncate(time.Microsecond))
		})
	}
}

func TestNewCodec(t *testing.T) {
	c, err := NewCodec("parquet")
	require.NoError(t, err)
	assert.Equal(t, "parquet", c.Ext())

	c, err = NewCodec("jsonl")
	require.NoError(t, err)
	assert.Equal(t, "jsonl", c.Ext())

	_, err = NewCodec("csv")
	assert.Error(t, err)
}

func TestTierColumns(t *testing.T) {
	base := []string{"id", "ingest_ts", "text", "source", "domain", "category"}
	assert.Equal(t, append(base[:len(base):len(base)], "ingest_ts_text"), TierRaw.ColumnNames())
	assert.Equal(t, append(base[:len(base):len(base)], "text_len", "status"), TierAccepted.ColumnNames())
	assert.Equal(t, TierAccepted.ColumnNames(), TierCurated.ColumnNames())
	assert.Equal(t, append(TierAccepted.ColumnNames(), "failure_reason"), TierRejected.ColumnNames())
}
