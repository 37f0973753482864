package record

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/curate/errors"
)

// ErrMalformed marks an inbound message that cannot become a record.
var ErrMalformed = errors.New("malformed record message")

// message is the wire shape of a queue message. Older producers
// emit "ts" rather than "ingest_ts"; both are accepted.
type message struct {
	ID       string  `json:"id"`
	IngestTS string  `json:"ingest_ts"`
	TS       string  `json:"ts"`
	Text     *string `json:"text"`
	Source   string  `json:"source"`
	Domain   string  `json:"domain"`
	Category string  `json:"category"`
}

// timestamp layouts seen on the topic, most specific first
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// Decode parses a JSON queue message into a Raw record. A missing id is
// generated. A missing capture time falls back to fetchedAt.
func Decode(payload []byte, fetchedAt time.Time) (Raw, error) {
	var msg message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Raw{}, errors.Mark(errors.Wrap(err, "decode record message"), ErrMalformed)
	}
	if msg.Text == nil {
		return Raw{}, errors.Mark(errors.New("record message has no text field"), ErrMalformed)
	}

	r := Raw{
		ID:       strings.TrimSpace(msg.ID),
		Text:     *msg.Text,
		Source:   Source(msg.Source),
		Domain:   Domain(msg.Domain),
		Category: Category(msg.Category),
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	if !r.Source.Valid() {
		return Raw{}, errors.Mark(errors.Newf("unknown source %q", msg.Source), ErrMalformed)
	}
	if !r.Domain.Valid() {
		return Raw{}, errors.Mark(errors.Newf("unknown domain %q", msg.Domain), ErrMalformed)
	}
	if !r.Category.Valid() {
		return Raw{}, errors.Mark(errors.Newf("unknown category %q", msg.Category), ErrMalformed)
	}

	ts := msg.IngestTS
	if ts == "" {
		ts = msg.TS
	}
	if ts == "" {
		r.IngestTS = fetchedAt.UTC()
		return r, nil
	}
	parsed, err := parseTimestamp(ts)
	if err != nil {
		return Raw{}, errors.Mark(err, ErrMalformed)
	}
	r.IngestTS = parsed
	r.IngestTSText = ts
	return r, nil
}

// parseTimestamp accepts RFC3339 and naive ISO-8601; naive times are UTC.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Newf("unparseable ingest_ts %q", s)
}
