// Package tier persists the artifacts of a run: the raw batch, the accepted
// and rejected partitions, and the curated day partitions. Every artifact is
// published atomically and never overwritten.
package tier

import (
	"github.com/teranos/curate/record"
)

// Tier names a dataset tier.
type Tier string

const (
	TierRaw      Tier = "raw"
	TierAccepted Tier = "accepted"
	TierRejected Tier = "rejected"
	TierCurated  Tier = "curated"
)

// Tiers lists the tiers in write order.
var Tiers = []Tier{TierRaw, TierAccepted, TierRejected, TierCurated}

// Column is one column of a tier schema. Type is the DuckDB column type.
type Column struct {
	Name string
	Type string
}

var recordColumns = []Column{
	{"id", "VARCHAR"},
	{"ingest_ts", "TIMESTAMP"},
	{"text", "VARCHAR"},
	{"source", "VARCHAR"},
	{"domain", "VARCHAR"},
	{"category", "VARCHAR"},
}

// The raw tier also keeps the capture time as received, since TIMESTAMP
// holds microseconds in UTC only.
var rawColumns = append(append([]Column{}, recordColumns...),
	Column{"ingest_ts_text", "VARCHAR"},
)

var acceptedColumns = append(append([]Column{}, recordColumns...),
	Column{"text_len", "INTEGER"},
	Column{"status", "VARCHAR"},
)

var rejectedColumns = append(append([]Column{}, acceptedColumns...),
	Column{"failure_reason", "VARCHAR"},
)

// Columns returns the stable column schema of the tier. Curated shares the
// accepted schema.
func (t Tier) Columns() []Column {
	switch t {
	case TierRaw:
		return rawColumns
	case TierRejected:
		return rejectedColumns
	default:
		return acceptedColumns
	}
}

// ColumnNames returns the schema column names in order.
func (t Tier) ColumnNames() []string {
	cols := t.Columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// values returns the row values of v in schema column order.
func (t Tier) values(v record.Validated) []any {
	vals := []any{
		v.ID,
		v.IngestTS.UTC(),
		v.Text,
		string(v.Source),
		string(v.Domain),
		string(v.Category),
	}
	if t == TierRaw {
		return append(vals, v.IngestTSText)
	}
	vals = append(vals, v.TextLen, string(v.Status))
	if t == TierRejected {
		vals = append(vals, string(v.Reason()))
	}
	return vals
}

// rawRows lifts raw records into rows for the raw tier schema.
func rawRows(raw []record.Raw) []record.Validated {
	rows := make([]record.Validated, len(raw))
	for i, r := range raw {
		rows[i] = record.Validated{Raw: r}
	}
	return rows
}
