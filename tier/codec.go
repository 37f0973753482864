package tier

import (
	"context"

	"github.com/teranos/curate/errors"
	"github.com/teranos/curate/record"
)

// Codec encodes tier rows into an artifact file and back. Encoding must be
// deterministic for a given input so re-attempted writes produce the same bytes.
type Codec interface {
	// Ext is the file extension without the dot.
	Ext() string
	Encode(ctx context.Context, t Tier, rows []record.Validated) ([]byte, error)
	// Decode returns the rows of an artifact. Columns outside the tier schema
	// are left zero (raw rows carry no verdict).
	Decode(ctx context.Context, t Tier, data []byte) ([]record.Validated, error)
}

// NewCodec returns the codec for a storage format name (parquet or jsonl).
func NewCodec(format string) (Codec, error) {
	switch format {
	case "parquet":
		return NewParquetCodec(""), nil
	case "jsonl":
		return JSONLCodec{}, nil
	default:
		return nil, errors.Newf("unknown artifact format %q", format)
	}
}

// fromColumns rebuilds a validated record from decoded tier columns.
func fromColumns(t Tier, r record.Raw, textLen int, status, reason string) record.Validated {
	v := record.Validated{Raw: r}
	if t == TierRaw {
		return v
	}
	v.TextLen = textLen
	v.Status = record.Status(status)
	if t == TierRejected && reason != "" {
		fr := record.FailureReason(reason)
		v.FailureReason = &fr
	}
	return v
}
