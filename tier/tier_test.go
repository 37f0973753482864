package tier

import (
	"context"
	"time"

	"github.com/teranos/curate/record"
)

var (
	day1 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 = time.Date(2025, 3, 2, 0, 30, 0, 0, time.UTC)
)

func sampleRaw(id string, ts time.Time, text string) record.Raw {
	return record.Raw{
		ID:       id,
		IngestTS: ts,
		Text:     text,
		Source:   record.SourceWeb,
		Domain:   record.DomainNews,
		Category: record.CategoryAI,
	}
}

// sampleBatch returns three records: two accepted on different days, one rejected.
func sampleBatch() ([]record.Raw, []record.Validated) {
	raw := []record.Raw{
		sampleRaw("a", day1, "The first accepted record text."),
		sampleRaw("b", day1, "short"),
		sampleRaw("c", day2, "The second accepted record, it's on day two."),
	}
	validated := []record.Validated{
		record.Accept(raw[0]),
		record.Reject(raw[1], record.ReasonTooShort),
		record.Accept(raw[2]),
	}
	return raw, validated
}

// failingBackend fails every Publish.
type failingBackend struct {
	Backend
	err error
}

func (f failingBackend) Publish(context.Context, string, []byte) error {
	return f.err
}
