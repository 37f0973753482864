package tier

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/teranos/curate/errors"
	"github.com/teranos/curate/record"
)

// JSONLCodec writes one JSON object per row; keys are the schema columns.
type JSONLCodec struct{}

// Ext implements Codec.
func (JSONLCodec) Ext() string { return "jsonl" }

type jsonRawRow struct {
	ID       string    `json:"id"`
	IngestTS time.Time `json:"ingest_ts"`
	Text     string    `json:"text"`
	Source   string    `json:"source"`
	Domain   string    `json:"domain"`
	Category string    `json:"category"`
}

type jsonRawTierRow struct {
	jsonRawRow
	IngestTSText string `json:"ingest_ts_text"`
}

type jsonAcceptedRow struct {
	jsonRawRow
	TextLen int    `json:"text_len"`
	Status  string `json:"status"`
}

type jsonRejectedRow struct {
	jsonAcceptedRow
	FailureReason string `json:"failure_reason"`
}

// Encode implements Codec.
func (JSONLCodec) Encode(ctx context.Context, t Tier, rows []record.Validated) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for _, v := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rawRow := jsonRawRow{
			ID:       v.ID,
			IngestTS: v.IngestTS.UTC(),
			Text:     v.Text,
			Source:   string(v.Source),
			Domain:   string(v.Domain),
			Category: string(v.Category),
		}
		var row any
		switch t {
		case TierRaw:
			row = jsonRawTierRow{jsonRawRow: rawRow, IngestTSText: v.IngestTSText}
		case TierRejected:
			row = jsonRejectedRow{
				jsonAcceptedRow: jsonAcceptedRow{jsonRawRow: rawRow, TextLen: v.TextLen, Status: string(v.Status)},
				FailureReason:   string(v.Reason()),
			}
		default:
			row = jsonAcceptedRow{jsonRawRow: rawRow, TextLen: v.TextLen, Status: string(v.Status)}
		}
		if err := enc.Encode(row); err != nil {
			return nil, errors.Wrapf(err, "encode %s row %s", t, v.ID)
		}
	}
	return buf.Bytes(), nil
}

// Decode implements Codec.
func (JSONLCodec) Decode(ctx context.Context, t Tier, data []byte) ([]record.Validated, error) {
	rows := make([]record.Validated, 0)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}
		var row struct {
			jsonRejectedRow
			IngestTSText string `json:"ingest_ts_text"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			return nil, errors.Wrapf(err, "decode %s line %d", t, line)
		}
		r := record.Raw{
			ID:       row.ID,
			IngestTS: row.IngestTS.UTC(),
			Text:     row.Text,
			Source:   record.Source(row.Source),
			Domain:   record.Domain(row.Domain),
			Category: record.Category(row.Category),
		}
		if t == TierRaw {
			r.IngestTSText = row.IngestTSText
		}
		rows = append(rows, fromColumns(t, r, row.TextLen, row.Status, row.FailureReason))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "scan %s artifact", t)
	}
	return rows, nil
}
