// Package store persists records as Parquet files, one file per record key
// inside a bundle directory.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/couchcryptid/geoderive/internal/domain"
)

// Extension is the file extension of stored records.
const Extension = ".parquet"

const (
	metaColumns = "geoderive.columns"
	metaHeader  = "geoderive.header"
	readBatch   = 4096
)

// row is one sample: a timestamp and one value per column, in column order.
type row struct {
	Time   int64     `parquet:"time"`
	Values []float64 `parquet:"values"`
}

// Store reads and writes records under bundle directories.
type Store struct {
	logger *slog.Logger
}

// New creates a Store.
func New(logger *slog.Logger) *Store {
	return &Store{logger: logger}
}

// Path returns the file holding key in bundle source.
func Path(source, key string) string {
	return filepath.Join(source, key+Extension)
}

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("invalid record key %q", key)
	}
	return nil
}

// Read loads the record stored under key. A missing record is reported as
// domain.ErrRecordNotFound.
func (s *Store) Read(ctx context.Context, source, key string) (*domain.Record, domain.Header, error) {
	if err := validKey(key); err != nil {
		return nil, domain.Header{}, err
	}
	path := Path(source, key)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.Header{}, fmt.Errorf("read %s: %w", path, domain.ErrRecordNotFound)
	}
	if err != nil {
		return nil, domain.Header{}, fmt.Errorf("read %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, domain.Header{}, fmt.Errorf("read %s: %w", path, err)
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, domain.Header{}, fmt.Errorf("open parquet %s: %w", path, err)
	}

	var columns []string
	if raw, ok := pf.Lookup(metaColumns); ok {
		if err := json.Unmarshal([]byte(raw), &columns); err != nil {
			return nil, domain.Header{}, fmt.Errorf("decode columns of %s: %w", path, err)
		}
	}
	var header domain.Header
	if raw, ok := pf.Lookup(metaHeader); ok {
		if err := json.Unmarshal([]byte(raw), &header); err != nil {
			return nil, domain.Header{}, fmt.Errorf("decode header of %s: %w", path, err)
		}
	}

	rows, err := readRows(ctx, pf)
	if err != nil {
		return nil, domain.Header{}, fmt.Errorf("read rows of %s: %w", path, err)
	}

	index := make([]time.Time, len(rows))
	data := make([][]float64, len(columns))
	for j := range data {
		data[j] = make([]float64, len(rows))
	}
	for i, r := range rows {
		if len(r.Values) != len(columns) {
			return nil, domain.Header{}, fmt.Errorf("read %s: row %d has %d values for %d columns", path, i, len(r.Values), len(columns))
		}
		index[i] = time.Unix(0, r.Time).UTC()
		for j, v := range r.Values {
			data[j][i] = v
		}
	}

	rec := domain.NewRecord(index)
	for j, name := range columns {
		if err := rec.Set(name, data[j]); err != nil {
			return nil, domain.Header{}, err
		}
	}
	s.logger.Debug("record read", "path", path, "samples", rec.Len(), "columns", len(columns))
	return rec, header, nil
}

func readRows(ctx context.Context, pf *parquet.File) ([]row, error) {
	reader := parquet.NewGenericReader[row](pf)
	defer reader.Close()

	rows := make([]row, 0, pf.NumRows())
	buf := make([]row, readBatch)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		clear(buf)
		n, err := reader.Read(buf)
		rows = append(rows, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return rows, nil
		}
	}
}

// Write stores rec and header under key, replacing any existing record. The
// file is written to a temporary name and renamed into place, so readers see
// either the old or the new record.
func (s *Store) Write(ctx context.Context, source string, rec *domain.Record, key string, header domain.Header) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := os.MkdirAll(source, 0o755); err != nil {
		return fmt.Errorf("create bundle %s: %w", source, err)
	}

	columns := rec.Columns()
	colJSON, err := json.Marshal(columns)
	if err != nil {
		return fmt.Errorf("encode columns: %w", err)
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	data := make([][]float64, len(columns))
	for j, name := range columns {
		data[j], _ = rec.Column(name)
	}
	index := rec.Index()
	rows := make([]row, len(index))
	for i, t := range index {
		values := make([]float64, len(columns))
		for j := range columns {
			values[j] = data[j][i]
		}
		rows[i] = row{Time: t.UnixNano(), Values: values}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	path := Path(source, key)
	tmp, err := os.CreateTemp(source, "."+key+"-*"+Extension)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	cleanup := func() { os.Remove(tmp.Name()) }

	w := parquet.NewGenericWriter[row](tmp,
		parquet.Compression(&parquet.Zstd),
		parquet.KeyValueMetadata(metaColumns, string(colJSON)),
		parquet.KeyValueMetadata(metaHeader, string(headerJSON)),
	)
	if _, err := w.Write(rows); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		cleanup()
		return fmt.Errorf("write %s: %w", path, err)
	}
	s.logger.Debug("record written", "path", path, "samples", len(rows), "columns", len(columns))
	return nil
}
