package tier

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/teranos/curate/errors"
	"github.com/teranos/curate/record"
)

// ParquetCodec produces Parquet artifacts through an in-memory DuckDB
// database: rows are loaded into a table with the tier schema and exported
// with COPY ... (FORMAT PARQUET). The files read back with read_parquet().
type ParquetCodec struct {
	tmpDir string
}

// NewParquetCodec creates a parquet codec staging files under tmpDir
// (os.TempDir() when empty).
func NewParquetCodec(tmpDir string) *ParquetCodec {
	return &ParquetCodec{tmpDir: tmpDir}
}

// Ext implements Codec.
func (c *ParquetCodec) Ext() string { return "parquet" }

// Encode implements Codec.
func (c *ParquetCodec) Encode(ctx context.Context, t Tier, rows []record.Validated) ([]byte, error) {
	dir, err := os.MkdirTemp(c.tmpDir, "curate-parquet-*")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create parquet staging dir")
	}
	defer os.RemoveAll(dir)

	conn, err := openDuckDB()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	createSQL := fmt.Sprintf("CREATE TABLE artifact (%s)", columnDDL(t.Columns()))
	if _, err := conn.ExecContext(ctx, createSQL); err != nil {
		return nil, errors.Wrapf(err, "failed to create %s staging table", t)
	}

	if err := insertRows(ctx, conn, t, rows); err != nil {
		return nil, err
	}

	out := filepath.Join(dir, "artifact.parquet")
	copySQL := fmt.Sprintf("COPY (SELECT * FROM artifact ORDER BY rowid) TO %s (FORMAT PARQUET)", quoteLiteral(out))
	if _, err := conn.ExecContext(ctx, copySQL); err != nil {
		return nil, errors.Wrapf(err, "failed to export %s parquet", t)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read exported parquet")
	}
	return data, nil
}

func insertRows(ctx context.Context, conn *sql.DB, t Tier, rows []record.Validated) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin staging insert")
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.Columns())), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO artifact VALUES (%s)", placeholders))
	if err != nil {
		return errors.Wrap(err, "failed to prepare staging insert")
	}
	defer stmt.Close()

	for _, v := range rows {
		if _, err := stmt.ExecContext(ctx, t.values(v)...); err != nil {
			return errors.Wrapf(err, "failed to stage %s row %s", t, v.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit staging insert")
	}
	return nil
}

// Decode implements Codec.
func (c *ParquetCodec) Decode(ctx context.Context, t Tier, data []byte) ([]record.Validated, error) {
	f, err := os.CreateTemp(c.tmpDir, "curate-read-*.parquet")
	if err != nil {
		return nil, errors.Wrap(err, "failed to stage parquet for reading")
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "failed to stage parquet for reading")
	}
	if err := f.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to stage parquet for reading")
	}

	conn, err := openDuckDB()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	query := fmt.Sprintf("SELECT %s FROM read_parquet(%s)", strings.Join(t.ColumnNames(), ", "), quoteLiteral(f.Name()))
	rs, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s parquet", t)
	}
	defer rs.Close()

	rows := make([]record.Validated, 0)
	for rs.Next() {
		var (
			r                        record.Raw
			ts                       time.Time
			source, domain, category string
			textLen                  int32
			status                   string
			reason                   sql.NullString
		)
		dest := []any{&r.ID, &ts, &r.Text, &source, &domain, &category}
		if t == TierRaw {
			dest = append(dest, &r.IngestTSText)
		} else {
			dest = append(dest, &textLen, &status)
		}
		if t == TierRejected {
			dest = append(dest, &reason)
		}
		if err := rs.Scan(dest...); err != nil {
			return nil, errors.Wrapf(err, "failed to scan %s row", t)
		}
		r.IngestTS = ts.UTC()
		r.Source = record.Source(source)
		r.Domain = record.Domain(domain)
		r.Category = record.Category(category)
		rows = append(rows, fromColumns(t, r, int(textLen), status, reason.String))
	}
	if err := rs.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to iterate %s rows", t)
	}
	return rows, nil
}

func openDuckDB() (*sql.DB, error) {
	conn, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open DuckDB")
	}
	// the staging table lives in a single in-memory database
	conn.SetMaxOpenConns(1)
	return conn, nil
}

func columnDDL(cols []Column) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c.Name + " " + c.Type
	}
	return strings.Join(parts, ", ")
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
