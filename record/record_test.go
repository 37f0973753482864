package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/curate/errors"
)

func TestDecode(t *testing.T) {
	fetched := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("full message", func(t *testing.T) {
		r, err := Decode([]byte(`{"id":"r1","ingest_ts":"2025-03-01T10:00:00Z","text":"hello","source":"web","domain":"news","category":"ai"}`), fetched)
		require.NoError(t, err)
		assert.Equal(t, "r1", r.ID)
		assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), r.IngestTS)
		assert.Equal(t, "2025-03-01T10:00:00Z", r.IngestTSText)
		assert.Equal(t, SourceWeb, r.Source)
		assert.Equal(t, DomainNews, r.Domain)
		assert.Equal(t, CategoryAI, r.Category)
	})

	t.Run("ts alias and naive timestamp", func(t *testing.T) {
		r, err := Decode([]byte(`{"id":"r2","ts":"2025-03-01T23:59:59.123456","text":"x","source":"doc","domain":"docs","category":"health"}`), fetched)
		require.NoError(t, err)
		assert.Equal(t, 2025, r.IngestTS.Year())
		assert.Equal(t, "2025-03-01", r.Day())
	})

	t.Run("missing id and timestamp", func(t *testing.T) {
		r, err := Decode([]byte(`{"text":"x","source":"code","domain":"code","category":"finance"}`), fetched)
		require.NoError(t, err)
		assert.NotEmpty(t, r.ID)
		assert.Equal(t, fetched, r.IngestTS)
		assert.Empty(t, r.IngestTSText)
	})

	t.Run("empty text is allowed", func(t *testing.T) {
		r, err := Decode([]byte(`{"id":"e","text":"","source":"web","domain":"news","category":"ai"}`), fetched)
		require.NoError(t, err)
		assert.Equal(t, 0, r.TextLen())
	})

	malformed := map[string]string{
		"not json":         `{"id":`,
		"no text":          `{"id":"a","source":"web","domain":"news","category":"ai"}`,
		"unknown source":   `{"text":"x","source":"ftp","domain":"news","category":"ai"}`,
		"unknown domain":   `{"text":"x","source":"web","domain":"sports","category":"ai"}`,
		"unknown category": `{"text":"x","source":"web","domain":"news","category":"sports"}`,
		"bad timestamp":    `{"text":"x","ts":"yesterday","source":"web","domain":"news","category":"ai"}`,
	}
	for name, payload := range malformed {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(payload), fetched)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))
		})
	}
}

func TestTextLenCountsCharacters(t *testing.T) {
	r := Raw{Text: "héllo wörld"}
	assert.Equal(t, 11, r.TextLen())
}

func TestVerdicts(t *testing.T) {
	raw := Raw{ID: "a", Text: "some text"}

	acc := Accept(raw)
	assert.True(t, acc.Accepted())
	assert.Nil(t, acc.FailureReason)
	assert.Equal(t, FailureReason(""), acc.Reason())
	assert.Equal(t, 9, acc.TextLen)

	rej := Reject(raw, ReasonProfanity)
	assert.False(t, rej.Accepted())
	require.NotNil(t, rej.FailureReason)
	assert.Equal(t, ReasonProfanity, rej.Reason())
}

func TestPartitionKeepsOrder(t *testing.T) {
	in := []Validated{
		Accept(Raw{ID: "1"}),
		Reject(Raw{ID: "2"}, ReasonTooShort),
		Accept(Raw{ID: "3"}),
		Reject(Raw{ID: "4"}, ReasonDuplicate),
	}
	acc, rej := Partition(in)
	require.Len(t, acc, 2)
	require.Len(t, rej, 2)
	assert.Equal(t, "1", acc[0].ID)
	assert.Equal(t, "3", acc[1].ID)
	assert.Equal(t, "2", rej[0].ID)
	assert.Equal(t, "4", rej[1].ID)

	acc, rej = Partition(nil)
	assert.NotNil(t, acc)
	assert.NotNil(t, rej)
	assert.Empty(t, acc)
}

func TestReasonValidity(t *testing.T) {
	for _, r := range Reasons {
		assert.True(t, r.Valid())
	}
	assert.False(t, FailureReason("spam").Valid())
}
